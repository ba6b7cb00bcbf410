package models

import (
	"time"

	"github.com/google/uuid"
)

// SemanticType classifies a column's values for relationship inference and
// statistics.
const (
	SemanticNumeric     = "numeric"
	SemanticCategorical = "categorical"
	SemanticDate        = "date"
	SemanticIdentifier  = "identifier"
	SemanticText        = "text"
)

// ValidSemanticTypes contains all valid semantic type values.
var ValidSemanticTypes = []string{
	SemanticNumeric,
	SemanticCategorical,
	SemanticDate,
	SemanticIdentifier,
	SemanticText,
}

// IsValidSemanticType checks if the given semantic type is valid.
func IsValidSemanticType(t string) bool {
	for _, v := range ValidSemanticTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Column is a profiled column within a Dataset. Counts are derived from the
// sampled rows and recomputed whenever the dataset is (re)loaded.
type Column struct {
	Name         string `json:"name"`
	SemanticType string `json:"semantic_type"`
	NullCount    int64  `json:"null_count"`
	UniqueCount  int64  `json:"unique_count"`
}

// Dataset is one uploaded tabular file: a name, its profiled columns, and the
// sampled rows the profile was computed from. Immutable once built; a
// re-upload under the same name replaces it wholesale.
type Dataset struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Columns    []Column  `json:"columns"`
	RowCount   int64     `json:"row_count"` // full count read from the file
	UploadedAt time.Time `json:"uploaded_at"`

	// Rows holds the retained sample (bounded by the configured sample
	// limit), cell-aligned with Columns. Not serialized.
	Rows [][]string `json:"-"`
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the ordered column names.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// SampleRows returns up to n leading rows for schema summaries.
func (d *Dataset) SampleRows(n int) [][]string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}
