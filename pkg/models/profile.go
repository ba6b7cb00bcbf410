package models

// StatisticalProfile summarizes one column of one dataset. Exactly one of
// Numeric or Categorical is set for profilable columns; both are nil when the
// column has no usable values, with NotApplicable marking that case instead
// of an error.
type StatisticalProfile struct {
	DatasetName   string `json:"dataset_name"`
	ColumnName    string `json:"column_name"`
	SemanticType  string `json:"semantic_type"`
	NullCount     int64  `json:"null_count"`
	UniqueCount   int64  `json:"unique_count"`
	NotApplicable bool   `json:"not_applicable,omitempty"`

	Numeric     *NumericSummary     `json:"numeric,omitempty"`
	Categorical *CategoricalSummary `json:"categorical,omitempty"`
}

// NumericSummary is the five-number summary with IQR outlier fencing.
// Date-like columns are summarized over Unix seconds of the parsed values.
type NumericSummary struct {
	Min          float64 `json:"min"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	IQR          float64 `json:"iqr"`
	OutlierCount int64   `json:"outlier_count"`
}

// CategoricalSummary is the top-k frequency distribution. Fractions are
// relative to the non-null count; the long tail is omitted, so fractions sum
// to at most 1.0.
type CategoricalSummary struct {
	TopValues []ValueFrequency `json:"top_values"`
}

// ValueFrequency is one categorical value with its occurrence count and its
// fraction of the non-null rows.
type ValueFrequency struct {
	Value    string  `json:"value"`
	Count    int64   `json:"count"`
	Fraction float64 `json:"fraction"`
}
