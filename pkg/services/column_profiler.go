package services

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/models"
)

const (
	// identifierDistinctRatio is the share of non-null values that must be
	// distinct for a column to classify as an identifier.
	identifierDistinctRatio = 0.95

	// identifierMaxRunes is the longest value an identifier column may
	// contain (UUID length).
	identifierMaxRunes = 36

	// categoricalMaxFraction bounds distinct values relative to the
	// non-null count for categorical classification.
	categoricalMaxFraction = 0.05

	// categoricalMaxDistinct is the absolute distinct cap for categorical
	// classification.
	categoricalMaxDistinct = 50

	// maxTrackedDistinct caps per-column distinct counting so profiling
	// cost stays bounded on wide value domains.
	maxTrackedDistinct = 10000
)

// dateOnlyLayouts and timestampLayouts are the two date-like families. A
// column is date-like only when every non-null value parses under a single
// family.
var dateOnlyLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// nullLiterals are cell contents treated as missing, matching how analyst
// tooling reads CSV exports.
var nullLiterals = map[string]bool{
	"null": true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
}

// ColumnProfiler infers a semantic type plus null/unique counts for raw
// column values. Classification is pure and never fails: values that resist
// every coercion fall through to text.
type ColumnProfiler interface {
	// ProfileColumn classifies one column's values in original order.
	ProfileColumn(name string, values []string) models.Column

	// ProfileColumns classifies every column of a parsed table. Rows are
	// cell-aligned with the header.
	ProfileColumns(header []string, rows [][]string) []models.Column
}

type columnProfiler struct {
	logger *zap.Logger
}

// NewColumnProfiler creates a new ColumnProfiler.
func NewColumnProfiler(logger *zap.Logger) ColumnProfiler {
	return &columnProfiler{logger: logger.Named("column-profiler")}
}

func (p *columnProfiler) ProfileColumn(name string, values []string) models.Column {
	semanticType, nullCount, uniqueCount := classifyValues(values)
	return models.Column{
		Name:         name,
		SemanticType: semanticType,
		NullCount:    nullCount,
		UniqueCount:  uniqueCount,
	}
}

func (p *columnProfiler) ProfileColumns(header []string, rows [][]string) []models.Column {
	columns := make([]models.Column, len(header))
	for i, name := range header {
		columns[i] = p.ProfileColumn(name, columnValues(rows, i))
	}
	p.logger.Debug("profiled columns",
		zap.Int("columns", len(header)),
		zap.Int("rows", len(rows)))
	return columns
}

var _ ColumnProfiler = (*columnProfiler)(nil)

// classifyValues runs the coercion ladder: numeric, then date-like, then
// identifier, then categorical, then text. First match wins.
func classifyValues(values []string) (semanticType string, nullCount, uniqueCount int64) {
	nonNull := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if isNullValue(v) {
			nullCount++
			continue
		}
		nonNull = append(nonNull, v)
	}

	uniqueCount = distinctCount(nonNull)
	if len(nonNull) == 0 {
		return models.SemanticText, nullCount, 0
	}

	switch {
	case allNumeric(nonNull):
		semanticType = models.SemanticNumeric
	case allDateLike(nonNull):
		semanticType = models.SemanticDate
	case isIdentifierColumn(nonNull, uniqueCount):
		semanticType = models.SemanticIdentifier
	case isCategoricalColumn(int64(len(nonNull)), uniqueCount):
		semanticType = models.SemanticCategorical
	default:
		semanticType = models.SemanticText
	}
	return semanticType, nullCount, uniqueCount
}

func isNullValue(v string) bool {
	return v == "" || nullLiterals[strings.ToLower(v)]
}

func distinctCount(values []string) int64 {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
		if len(set) >= maxTrackedDistinct {
			break
		}
	}
	return int64(len(set))
}

func allNumeric(values []string) bool {
	for _, v := range values {
		if !isNumericValue(v) {
			return false
		}
	}
	return true
}

// isNumericValue accepts what strconv accepts, minus NaN/Inf spellings, and
// deliberately does not honor thousands separators.
func isNumericValue(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func allDateLike(values []string) bool {
	return allParseWith(values, dateOnlyLayouts) || allParseWith(values, timestampLayouts)
}

func allParseWith(values []string, layouts []string) bool {
	for _, v := range values {
		if _, ok := parseWith(v, layouts); !ok {
			return false
		}
	}
	return true
}

func parseWith(v string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateLike parses a value under either date-like family.
func parseDateLike(v string) (time.Time, bool) {
	if t, ok := parseWith(v, dateOnlyLayouts); ok {
		return t, true
	}
	return parseWith(v, timestampLayouts)
}

func isIdentifierColumn(nonNull []string, uniqueCount int64) bool {
	if float64(uniqueCount) < identifierDistinctRatio*float64(len(nonNull)) {
		return false
	}
	for _, v := range nonNull {
		if !isNumericValue(v) && utf8.RuneCountInString(v) > identifierMaxRunes {
			return false
		}
	}
	return true
}

func isCategoricalColumn(nonNullCount, uniqueCount int64) bool {
	if uniqueCount <= categoricalMaxDistinct {
		return true
	}
	return float64(uniqueCount) <= categoricalMaxFraction*float64(nonNullCount)
}

// columnValues extracts one column from cell-aligned rows.
func columnValues(rows [][]string, idx int) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		values = append(values, row[idx])
	}
	return values
}
