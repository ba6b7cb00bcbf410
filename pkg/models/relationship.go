package models

import "time"

// RelationshipEdge is a proposed join between a column of one dataset and a
// column of another. The match basis is kept alongside the blended confidence
// so a reviewer can see why the edge was proposed.
type RelationshipEdge struct {
	SourceDataset  string  `json:"source_dataset"`
	SourceColumn   string  `json:"source_column"`
	TargetDataset  string  `json:"target_dataset"`
	TargetColumn   string  `json:"target_column"`
	Confidence     float64 `json:"confidence"`
	ValueOverlap   float64 `json:"value_overlap"`   // Jaccard over distinct values
	NameSimilarity float64 `json:"name_similarity"` // normalized name score
}

// UnifiedModel is the queryable logical schema over the currently uploaded
// datasets: the datasets plus at most one relationship edge per dataset pair.
// A model is built whole and never mutated; dataset changes produce a new one.
type UnifiedModel struct {
	Datasets []*Dataset         `json:"datasets"`
	Edges    []RelationshipEdge `json:"edges"`
	BuiltAt  time.Time          `json:"built_at"`
}

// Dataset returns the named dataset, or nil.
func (m *UnifiedModel) Dataset(name string) *Dataset {
	for _, d := range m.Datasets {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// EdgeBetween returns the relationship edge connecting the two named datasets
// in either direction, or false when the pair is unlinked.
func (m *UnifiedModel) EdgeBetween(a, b string) (RelationshipEdge, bool) {
	for _, e := range m.Edges {
		if (e.SourceDataset == a && e.TargetDataset == b) ||
			(e.SourceDataset == b && e.TargetDataset == a) {
			return e, true
		}
	}
	return RelationshipEdge{}, false
}
