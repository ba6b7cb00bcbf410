// Package sql analyzes machine-generated SQL before it is allowed anywhere
// near an engine: normalization, statement-kind classification, and injection
// screening. It deliberately performs no deep parsing.
package sql

import (
	"strings"
)

// Normalize prepares a statement for classification: comments are removed,
// surrounding whitespace is trimmed, and a single trailing semicolon is
// stripped. The statement's body is otherwise untouched.
func Normalize(sqlQuery string) string {
	stripped := stripComments(sqlQuery)
	stripped = strings.TrimSpace(stripped)
	return stripTrailingSemicolon(stripped)
}

// HasSeparator reports whether the statement still contains a semicolon
// outside string literals. Run after Normalize: any remaining semicolon means
// chained statements.
func HasSeparator(sqlQuery string) bool {
	return hasSemicolonOutsideStrings(sqlQuery)
}

const (
	stateNormal = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
	stateBlockComment
)

// stripComments removes -- line comments and /* */ block comments, honoring
// string literals so comment markers inside quotes survive. Comments are
// replaced with a single space to preserve token boundaries.
func stripComments(sqlQuery string) string {
	var b strings.Builder
	b.Grow(len(sqlQuery))

	state := stateNormal
	runes := []rune(sqlQuery)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case ch == '-' && next == '-':
				state = stateLineComment
				b.WriteRune(' ')
				i++
			case ch == '/' && next == '*':
				state = stateBlockComment
				b.WriteRune(' ')
				i++
			case ch == '\'':
				state = stateSingleQuote
				b.WriteRune(ch)
			case ch == '"':
				state = stateDoubleQuote
				b.WriteRune(ch)
			default:
				b.WriteRune(ch)
			}
		case stateSingleQuote:
			b.WriteRune(ch)
			if ch == '\'' && (i == 0 || runes[i-1] != '\\') {
				state = stateNormal
			}
		case stateDoubleQuote:
			b.WriteRune(ch)
			if ch == '"' && (i == 0 || runes[i-1] != '\\') {
				state = stateNormal
			}
		case stateLineComment:
			if ch == '\n' {
				state = stateNormal
				b.WriteRune('\n')
			}
		case stateBlockComment:
			if ch == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return b.String()
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals. Handles both backslash escapes (\') and the SQL
// standard doubled quote ('') — the doubled form exits and immediately
// re-enters the string state, which is equivalent.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes one trailing semicolon plus surrounding
// whitespace. Only the final statement terminator is forgiven; interior
// semicolons are the separator check's business.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}
	return sqlQuery
}

// stringLiterals returns the contents of all single-quoted literals, with the
// doubled-quote escape collapsed. Used by the injection screen: only literal
// content is ever attacker-controlled in a generated statement.
func stringLiterals(sqlQuery string) []string {
	var literals []string
	var current strings.Builder

	state := stateNormal
	runes := []rune(sqlQuery)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch state {
		case stateNormal:
			switch ch {
			case '\'':
				state = stateSingleQuote
				current.Reset()
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if ch == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					current.WriteRune('\'')
					i++
					continue
				}
				literals = append(literals, current.String())
				state = stateNormal
				continue
			}
			current.WriteRune(ch)
		case stateDoubleQuote:
			if ch == '"' {
				state = stateNormal
			}
		}
	}

	return literals
}
