package memtable

import (
	"fmt"
	"strconv"
	"strings"
)

// The engine accepts a deliberately small SQL subset:
//
//	SELECT cols|*|aggregates FROM t [[INNER|LEFT] JOIN u [ON a.x = b.y]]
//	  [WHERE col op literal [AND ...]] [GROUP BY col]
//	  [ORDER BY col [ASC|DESC]] [LIMIT n] [;]
//
// Aggregates are COUNT/SUM/AVG/MIN/MAX. Anything outside the subset is a
// parse error. The ON clause is accepted for compatibility with generated
// SQL but ignored: join keys always come from the unified model's edge.

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenSymbol
	tokenEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) isSymbol(s string) bool {
	return t.kind == tokenSymbol && t.text == s
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '\'':
			text, end, err := scanQuoted(input, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: text, pos: i})
			i = end

		case c == '"' || c == '`':
			text, end, err := scanQuoted(input, i, c)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenIdent, text: text, pos: i})
			i = end

		case isIdentStart(c):
			j := i + 1
			for j < len(input) && isIdentPart(input[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: input[i:j], pos: i})
			i = j

		case isDigit(c):
			j := i + 1
			seenDot := false
			for j < len(input) && (isDigit(input[j]) || (input[j] == '.' && !seenDot)) {
				if input[j] == '.' {
					seenDot = true
				}
				j++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: input[i:j], pos: i})
			i = j

		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenSymbol, text: "!=", pos: i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}

		case c == '<' || c == '>':
			if i+1 < len(input) && (input[i+1] == '=' || (c == '<' && input[i+1] == '>')) {
				tokens = append(tokens, token{kind: tokenSymbol, text: input[i : i+2], pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenSymbol, text: string(c), pos: i})
				i++
			}

		case c == '=' || c == ',' || c == '(' || c == ')' || c == '.' || c == '*' || c == ';' || c == '-':
			tokens = append(tokens, token{kind: tokenSymbol, text: string(c), pos: i})
			i++

		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})
	return tokens, nil
}

// scanQuoted reads a quoted run starting at start, where a doubled quote
// escapes itself. Returns the unquoted text and the index past the closer.
func scanQuoted(input string, start int, quote byte) (string, int, error) {
	var sb strings.Builder
	j := start + 1
	for {
		if j >= len(input) {
			return "", 0, fmt.Errorf("unterminated %q at position %d", string(quote), start)
		}
		if input[j] == quote {
			if j+1 < len(input) && input[j+1] == quote {
				sb.WriteByte(quote)
				j += 2
				continue
			}
			return sb.String(), j + 1, nil
		}
		sb.WriteByte(input[j])
		j++
	}
}

// columnRef names a column, optionally qualified by its dataset.
type columnRef struct {
	Table string
	Name  string
}

func (r columnRef) String() string {
	if r.Table != "" {
		return r.Table + "." + r.Name
	}
	return r.Name
}

// selectItem is one entry of the select list: either a plain column or an
// aggregate over a column (or over * for COUNT).
type selectItem struct {
	Agg   string // lowercase aggregate name, empty for a plain column
	Star  bool   // COUNT(*)
	Col   columnRef
	Alias string
}

// outputName is the column header this item produces in the result.
func (it selectItem) outputName() string {
	if it.Alias != "" {
		return it.Alias
	}
	if it.Agg != "" {
		if it.Star {
			return it.Agg + "(*)"
		}
		return it.Agg + "(" + it.Col.String() + ")"
	}
	return it.Col.Name
}

type condition struct {
	Col       columnRef
	Op        string // =, !=, <, <=, >, >=  (<> normalizes to !=)
	Value     string
	IsNumeric bool
}

type joinSpec struct {
	Table string
	Outer bool // LEFT JOIN keeps unmatched left rows
}

type orderSpec struct {
	Ref  columnRef
	Desc bool
}

type selectQuery struct {
	Star    bool
	Items   []selectItem
	From    string
	Join    *joinSpec
	Where   []condition
	GroupBy *columnRef
	OrderBy *orderSpec
	Limit   int // -1 when absent
}

var aggregateNames = map[string]bool{
	"count": true,
	"sum":   true,
	"avg":   true,
	"min":   true,
	"max":   true,
}

var comparisonOps = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
}

type parser struct {
	tokens []token
	pos    int
}

func parseSelect(input string) (*selectQuery, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	q := &selectQuery{Limit: -1}

	if !p.acceptKeyword("SELECT") {
		return nil, p.errorf("expected SELECT")
	}
	if err := p.parseSelectList(q); err != nil {
		return nil, err
	}

	if !p.acceptKeyword("FROM") {
		return nil, p.errorf("expected FROM")
	}
	from, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	q.From = from

	if err := p.parseJoinClause(q); err != nil {
		return nil, err
	}

	if p.acceptKeyword("WHERE") {
		for {
			cond, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			q.Where = append(q.Where, cond)
			if !p.acceptKeyword("AND") {
				break
			}
		}
	}

	if p.acceptKeyword("GROUP") {
		if !p.acceptKeyword("BY") {
			return nil, p.errorf("expected BY after GROUP")
		}
		ref, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		q.GroupBy = &ref
	}

	if p.acceptKeyword("ORDER") {
		if !p.acceptKeyword("BY") {
			return nil, p.errorf("expected BY after ORDER")
		}
		ref, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		spec := orderSpec{Ref: ref}
		if p.acceptKeyword("DESC") {
			spec.Desc = true
		} else {
			p.acceptKeyword("ASC")
		}
		q.OrderBy = &spec
	}

	if p.acceptKeyword("LIMIT") {
		tok := p.next()
		if tok.kind != tokenNumber {
			return nil, p.errorf("expected number after LIMIT")
		}
		n, err := strconv.Atoi(tok.text)
		if err != nil {
			return nil, p.errorf("invalid LIMIT %q", tok.text)
		}
		q.Limit = n
	}

	p.acceptSymbol(";")
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, p.errorf("unexpected %q", tok.text)
	}
	return q, nil
}

func (p *parser) parseSelectList(q *selectQuery) error {
	if p.acceptSymbol("*") {
		q.Star = true
		return nil
	}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return err
		}
		q.Items = append(q.Items, item)
		if !p.acceptSymbol(",") {
			return nil
		}
	}
}

func (p *parser) parseSelectItem() (selectItem, error) {
	tok := p.peek()
	if tok.kind == tokenIdent && aggregateNames[strings.ToLower(tok.text)] && p.peekAt(1).isSymbol("(") {
		p.next()
		p.next()
		item := selectItem{Agg: strings.ToLower(tok.text)}

		if p.acceptSymbol("*") {
			if item.Agg != "count" {
				return selectItem{}, p.errorf("%s(*) is not supported", strings.ToUpper(item.Agg))
			}
			item.Star = true
		} else {
			ref, err := p.parseColumnRef()
			if err != nil {
				return selectItem{}, err
			}
			item.Col = ref
		}
		if !p.acceptSymbol(")") {
			return selectItem{}, p.errorf("expected ) after aggregate argument")
		}

		alias, err := p.parseAlias()
		if err != nil {
			return selectItem{}, err
		}
		item.Alias = alias
		return item, nil
	}

	ref, err := p.parseColumnRef()
	if err != nil {
		return selectItem{}, err
	}
	alias, err := p.parseAlias()
	if err != nil {
		return selectItem{}, err
	}
	return selectItem{Col: ref, Alias: alias}, nil
}

func (p *parser) parseAlias() (string, error) {
	if !p.acceptKeyword("AS") {
		return "", nil
	}
	return p.expectIdent("alias")
}

func (p *parser) parseColumnRef() (columnRef, error) {
	name, err := p.expectIdent("column name")
	if err != nil {
		return columnRef{}, err
	}
	if p.acceptSymbol(".") {
		col, err := p.expectIdent("column name")
		if err != nil {
			return columnRef{}, err
		}
		return columnRef{Table: name, Name: col}, nil
	}
	return columnRef{Name: name}, nil
}

func (p *parser) parseJoinClause(q *selectQuery) error {
	outer := false
	switch {
	case p.acceptKeyword("INNER"):
	case p.acceptKeyword("LEFT"):
		p.acceptKeyword("OUTER")
		outer = true
	case p.peekKeyword("JOIN"):
	default:
		return nil
	}
	if !p.acceptKeyword("JOIN") {
		return p.errorf("expected JOIN")
	}

	name, err := p.expectIdent("table name")
	if err != nil {
		return err
	}
	q.Join = &joinSpec{Table: name, Outer: outer}

	// ON a.x = b.y is parsed for shape and then discarded; the model's edge
	// decides the join keys.
	if p.acceptKeyword("ON") {
		if _, err := p.parseColumnRef(); err != nil {
			return err
		}
		if !p.acceptSymbol("=") {
			return p.errorf("expected = in ON clause")
		}
		if _, err := p.parseColumnRef(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseCondition() (condition, error) {
	ref, err := p.parseColumnRef()
	if err != nil {
		return condition{}, err
	}

	op := p.next()
	if op.kind != tokenSymbol || !comparisonOps[op.text] {
		return condition{}, p.errorf("expected comparison operator, got %q", op.text)
	}
	cond := condition{Col: ref, Op: op.text}
	if cond.Op == "<>" {
		cond.Op = "!="
	}

	lit := p.next()
	switch {
	case lit.kind == tokenString:
		cond.Value = lit.text
	case lit.kind == tokenNumber:
		cond.Value = lit.text
		cond.IsNumeric = true
	case lit.isSymbol("-"):
		num := p.next()
		if num.kind != tokenNumber {
			return condition{}, p.errorf("expected number after -")
		}
		cond.Value = "-" + num.text
		cond.IsNumeric = true
	default:
		return condition{}, p.errorf("expected literal, got %q", lit.text)
	}
	return cond, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) peekKeyword(kw string) bool {
	tok := p.peek()
	return tok.kind == tokenIdent && strings.EqualFold(tok.text, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peekKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptSymbol(s string) bool {
	if p.peek().isSymbol(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectIdent(what string) (string, error) {
	tok := p.next()
	if tok.kind != tokenIdent {
		return "", p.errorf("expected %s, got %q", what, tok.text)
	}
	return tok.text, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%s at position %d", fmt.Sprintf(format, args...), p.peek().pos)
}
