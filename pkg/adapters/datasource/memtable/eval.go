package memtable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/models"
)

// boundTable is the evaluation intermediate: ordered output columns plus rows
// of raw values. Dataset cells enter as strings (empty cells become nil);
// aggregation introduces numbers and nils.
type boundTable struct {
	columns []string
	rows    [][]any

	byQual map[string]int   // "dataset.column" -> index
	byName map[string][]int // bare column name -> indexes
}

func newBoundTable() *boundTable {
	return &boundTable{
		byQual: make(map[string]int),
		byName: make(map[string][]int),
	}
}

func (t *boundTable) addColumn(qualifier, name, output string) {
	idx := len(t.columns)
	t.columns = append(t.columns, output)
	if qualifier != "" {
		t.byQual[qualifier+"."+name] = idx
	}
	t.byName[name] = append(t.byName[name], idx)
}

// resolve maps a column reference to its index. Bare names that occur in both
// joined datasets are ambiguous and must be qualified.
func (t *boundTable) resolve(ref columnRef) (int, error) {
	if ref.Table != "" {
		idx, ok := t.byQual[ref.Table+"."+ref.Name]
		if !ok {
			return 0, fmt.Errorf("unknown column %q", ref.String())
		}
		return idx, nil
	}
	idxs := t.byName[ref.Name]
	switch len(idxs) {
	case 0:
		return 0, fmt.Errorf("unknown column %q", ref.Name)
	case 1:
		return idxs[0], nil
	default:
		return 0, fmt.Errorf("ambiguous column %q, qualify it with a table name", ref.Name)
	}
}

func (t *boundTable) withRows(rows [][]any) *boundTable {
	copied := *t
	copied.rows = rows
	return &copied
}

// cellValue maps a CSV cell into the value domain: empty cells are NULL.
func cellValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func bindDataset(ds *models.Dataset) *boundTable {
	t := newBoundTable()
	for _, c := range ds.Columns {
		t.addColumn(ds.Name, c.Name, c.Name)
	}
	t.rows = make([][]any, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		vals := make([]any, len(ds.Columns))
		for i := range ds.Columns {
			if i < len(row) {
				vals[i] = cellValue(row[i])
			}
		}
		t.rows = append(t.rows, vals)
	}
	return t
}

// bindJoin hash-joins two datasets on the key columns of their relationship
// edge. Right-side columns whose names collide with a left column are exposed
// qualified ("right.column"); null keys never match.
func bindJoin(model *models.UnifiedModel, left, right *models.Dataset, outer bool) (*boundTable, error) {
	edge, ok := model.EdgeBetween(left.Name, right.Name)
	if !ok {
		return nil, fmt.Errorf("%w: no relationship between %q and %q", apperrors.ErrNoJoinPath, left.Name, right.Name)
	}

	leftKeyCol, rightKeyCol := edge.SourceColumn, edge.TargetColumn
	if edge.SourceDataset != left.Name {
		leftKeyCol, rightKeyCol = edge.TargetColumn, edge.SourceColumn
	}
	leftKey := left.ColumnIndex(leftKeyCol)
	rightKey := right.ColumnIndex(rightKeyCol)
	if leftKey < 0 || rightKey < 0 {
		return nil, fmt.Errorf("relationship key %s.%s / %s.%s missing from datasets",
			left.Name, leftKeyCol, right.Name, rightKeyCol)
	}

	t := newBoundTable()
	leftNames := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		t.addColumn(left.Name, c.Name, c.Name)
		leftNames[c.Name] = true
	}
	for _, c := range right.Columns {
		output := c.Name
		if leftNames[c.Name] {
			output = right.Name + "." + c.Name
		}
		t.addColumn(right.Name, c.Name, output)
	}

	index := make(map[string][]int)
	for i, row := range right.Rows {
		if rightKey >= len(row) {
			continue
		}
		if key := joinKey(row[rightKey]); key != "" {
			index[key] = append(index[key], i)
		}
	}

	for _, lrow := range left.Rows {
		var matches []int
		if leftKey < len(lrow) {
			if key := joinKey(lrow[leftKey]); key != "" {
				matches = index[key]
			}
		}
		if len(matches) == 0 {
			if outer {
				t.rows = append(t.rows, joinedRow(lrow, nil, len(left.Columns), len(right.Columns)))
			}
			continue
		}
		for _, ri := range matches {
			t.rows = append(t.rows, joinedRow(lrow, right.Rows[ri], len(left.Columns), len(right.Columns)))
		}
	}
	return t, nil
}

func joinedRow(lrow, rrow []string, lcols, rcols int) []any {
	vals := make([]any, lcols+rcols)
	for i := 0; i < lcols && i < len(lrow); i++ {
		vals[i] = cellValue(lrow[i])
	}
	for i := 0; rrow != nil && i < rcols && i < len(rrow); i++ {
		vals[lcols+i] = cellValue(rrow[i])
	}
	return vals
}

// joinKey canonicalizes a join cell the same way relationship scoring folds
// values for overlap: numeric-looking values collapse through parse/format so
// "1.0" joins "1", everything else compares case-insensitively.
func joinKey(cell string) string {
	v := strings.TrimSpace(cell)
	if v == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.ToLower(v)
}

func applyWhere(t *boundTable, conds []condition) (*boundTable, error) {
	if len(conds) == 0 {
		return t, nil
	}

	type boundCond struct {
		idx  int
		cond condition
	}
	bound := make([]boundCond, 0, len(conds))
	for _, c := range conds {
		idx, err := t.resolve(c.Col)
		if err != nil {
			return nil, err
		}
		bound = append(bound, boundCond{idx: idx, cond: c})
	}

	kept := make([][]any, 0, len(t.rows))
	for _, row := range t.rows {
		matches := true
		for _, bc := range bound {
			if !matchCondition(row[bc.idx], bc.cond) {
				matches = false
				break
			}
		}
		if matches {
			kept = append(kept, row)
		}
	}
	return t.withRows(kept), nil
}

// matchCondition evaluates cell OP literal. Null cells match nothing, like
// SQL NULL comparisons. The comparison is numeric when both sides parse as
// numbers, string otherwise.
func matchCondition(cell any, cond condition) bool {
	if cell == nil {
		return false
	}
	if cond.IsNumeric {
		if f, ok := numericValue(cell); ok {
			lit, err := strconv.ParseFloat(cond.Value, 64)
			if err == nil {
				return opHolds(compareFloats(f, lit), cond.Op)
			}
		}
	}
	return opHolds(strings.Compare(stringValue(cell), cond.Value), cond.Op)
}

func opHolds(cmp int, op string) bool {
	switch op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func hasAggregates(q *selectQuery) bool {
	for _, it := range q.Items {
		if it.Agg != "" {
			return true
		}
	}
	return false
}

// aggregate evaluates the select list over groups. Without GROUP BY the whole
// input forms one group; with it, groups keep first-seen order so unordered
// results stay deterministic.
func aggregate(t *boundTable, q *selectQuery) (*boundTable, error) {
	if q.Star {
		return nil, fmt.Errorf("SELECT * cannot be combined with GROUP BY or aggregates")
	}

	groupIdx := -1
	if q.GroupBy != nil {
		idx, err := t.resolve(*q.GroupBy)
		if err != nil {
			return nil, err
		}
		groupIdx = idx
	}

	type boundItem struct {
		item selectItem
		idx  int
	}
	items := make([]boundItem, 0, len(q.Items))
	for _, it := range q.Items {
		bi := boundItem{item: it, idx: -1}
		switch {
		case it.Agg == "":
			if groupIdx < 0 {
				return nil, fmt.Errorf("column %q must be aggregated or grouped", it.Col.String())
			}
			idx, err := t.resolve(it.Col)
			if err != nil {
				return nil, err
			}
			if idx != groupIdx {
				return nil, fmt.Errorf("column %q must appear in GROUP BY", it.Col.String())
			}
			bi.idx = idx
		case !it.Star:
			idx, err := t.resolve(it.Col)
			if err != nil {
				return nil, err
			}
			bi.idx = idx
		}
		items = append(items, bi)
	}

	out := newBoundTable()
	for _, bi := range items {
		name := bi.item.outputName()
		out.addColumn("", name, name)
		// keep the underlying column name resolvable for ORDER BY when the
		// group column was aliased
		if bi.item.Agg == "" && name != bi.item.Col.Name {
			out.byName[bi.item.Col.Name] = append(out.byName[bi.item.Col.Name], len(out.columns)-1)
		}
	}

	type group struct {
		key  any
		rows [][]any
	}
	var groups []*group
	if groupIdx < 0 {
		groups = []*group{{rows: t.rows}}
	} else {
		byKey := make(map[string]*group)
		for _, row := range t.rows {
			k := stringValue(row[groupIdx])
			g, ok := byKey[k]
			if !ok {
				g = &group{key: row[groupIdx]}
				byKey[k] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, row)
		}
	}

	for _, g := range groups {
		row := make([]any, len(items))
		for i, bi := range items {
			if bi.item.Agg == "" {
				row[i] = g.key
				continue
			}
			row[i] = computeAggregate(bi.item.Agg, bi.item.Star, bi.idx, g.rows)
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// computeAggregate folds one aggregate over a group. COUNT(*) counts rows and
// COUNT(col) counts non-null cells; SUM and AVG skip cells that do not parse
// as numbers; MIN and MAX keep the winning value itself. Empty inputs yield
// NULL (except COUNT, which yields 0).
func computeAggregate(fn string, star bool, idx int, rows [][]any) any {
	switch fn {
	case "count":
		if star {
			return int64(len(rows))
		}
		var n int64
		for _, row := range rows {
			if row[idx] != nil {
				n++
			}
		}
		return n

	case "sum", "avg":
		var sum float64
		var n int
		for _, row := range rows {
			if f, ok := numericValue(row[idx]); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		if fn == "avg" {
			return sum / float64(n)
		}
		return sum

	case "min", "max":
		var best any
		for _, row := range rows {
			v := row[idx]
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			cmp := compareValues(v, best)
			if (fn == "min" && cmp < 0) || (fn == "max" && cmp > 0) {
				best = v
			}
		}
		return best
	}
	return nil
}

func project(t *boundTable, q *selectQuery) (*boundTable, error) {
	if q.Star {
		return t, nil
	}

	out := newBoundTable()
	idxs := make([]int, 0, len(q.Items))
	for _, it := range q.Items {
		idx, err := t.resolve(it.Col)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, idx)
		name := it.outputName()
		out.addColumn("", name, name)
	}

	out.rows = make([][]any, 0, len(t.rows))
	for _, row := range t.rows {
		vals := make([]any, len(idxs))
		for i, idx := range idxs {
			vals[i] = row[idx]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

func applyOrder(t *boundTable, spec *orderSpec) error {
	if spec == nil {
		return nil
	}
	idx, err := t.resolve(spec.Ref)
	if err != nil {
		return err
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		cmp := compareValues(t.rows[i][idx], t.rows[j][idx])
		if spec.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return nil
}

// compareValues orders result values: nulls first, numbers numerically when
// both sides parse, strings lexicographically otherwise.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aok := numericValue(a)
	fb, bok := numericValue(b)
	if aok && bok {
		return compareFloats(fa, fb)
	}
	return strings.Compare(stringValue(a), stringValue(b))
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
