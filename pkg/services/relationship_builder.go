package services

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/tabular"
)

const (
	defaultConfidenceThreshold = 0.4
	defaultOverlapWeight       = 0.7
	defaultNameWeight          = 0.3

	// minJoinDistinct keeps trivial two-value columns from matching
	// everything.
	minJoinDistinct = 3

	// maxNumericJoinDomain caps numeric-numeric join candidates to
	// small value domains; wide numeric columns are measures, not keys.
	maxNumericJoinDomain = 1000
)

// RelationshipBuilder proposes join-key edges between uploaded datasets and
// assembles the unified model. Building is pure and never fails: when no
// column pair clears the confidence threshold the model simply has no edges
// and cross-dataset queries are rejected later, at execution time.
type RelationshipBuilder interface {
	Build(datasets []*models.Dataset) *models.UnifiedModel
}

type relationshipBuilder struct {
	threshold     float64
	overlapWeight float64
	nameWeight    float64
	distinctCap   int
	logger        *zap.Logger
}

// NewRelationshipBuilder creates a new RelationshipBuilder. A zero-value
// relationship config falls back to the 0.7/0.3 overlap/name weighting at
// threshold 0.4.
func NewRelationshipBuilder(cfg config.RelationshipConfig, profiling config.ProfilingConfig, logger *zap.Logger) RelationshipBuilder {
	threshold := cfg.ConfidenceThreshold
	overlapWeight := cfg.OverlapWeight
	nameWeight := cfg.NameWeight
	if threshold == 0 && overlapWeight == 0 && nameWeight == 0 {
		threshold = defaultConfidenceThreshold
		overlapWeight = defaultOverlapWeight
		nameWeight = defaultNameWeight
	}
	distinctCap := profiling.DistinctCap
	if distinctCap <= 0 {
		distinctCap = maxTrackedDistinct
	}
	return &relationshipBuilder{
		threshold:     threshold,
		overlapWeight: overlapWeight,
		nameWeight:    nameWeight,
		distinctCap:   distinctCap,
		logger:        logger.Named("relationship-builder"),
	}
}

func (b *relationshipBuilder) Build(datasets []*models.Dataset) *models.UnifiedModel {
	start := time.Now()
	model := &models.UnifiedModel{Datasets: datasets, BuiltAt: start}

	// Bounded distinct sets, computed once per column.
	sets := make([][]map[string]struct{}, len(datasets))
	for i, ds := range datasets {
		sets[i] = b.columnJoinSets(ds)
	}

	for i := 0; i < len(datasets); i++ {
		for j := i + 1; j < len(datasets); j++ {
			if edge, ok := b.bestEdge(datasets[i], sets[i], datasets[j], sets[j]); ok {
				model.Edges = append(model.Edges, edge)
			}
		}
	}

	b.logger.Info("unified model built",
		zap.Int("datasets", len(datasets)),
		zap.Int("edges", len(model.Edges)),
		zap.Duration("duration", time.Since(start)))
	return model
}

var _ RelationshipBuilder = (*relationshipBuilder)(nil)
var _ tabular.ModelBuilder = (*relationshipBuilder)(nil)

// bestEdge returns the highest-confidence candidate between two datasets.
// At most one edge survives per dataset pair; confidence ties go to the
// lexicographically smaller column pair so rebuilds are deterministic.
func (b *relationshipBuilder) bestEdge(x *models.Dataset, xSets []map[string]struct{}, y *models.Dataset, ySets []map[string]struct{}) (models.RelationshipEdge, bool) {
	var best models.RelationshipEdge
	var found bool

	for ai, colA := range x.Columns {
		for bi, colB := range y.Columns {
			if !compatibleForJoin(colA, colB) {
				continue
			}
			overlap := jaccardOverlap(xSets[ai], ySets[bi])
			name := nameSimilarity(colA.Name, colB.Name)
			confidence := b.overlapWeight*overlap + b.nameWeight*name
			if confidence < b.threshold {
				continue
			}

			candidate := models.RelationshipEdge{
				SourceDataset:  x.Name,
				SourceColumn:   colA.Name,
				TargetDataset:  y.Name,
				TargetColumn:   colB.Name,
				Confidence:     confidence,
				ValueOverlap:   overlap,
				NameSimilarity: name,
			}
			if !found || candidate.Confidence > best.Confidence ||
				(candidate.Confidence == best.Confidence && lessColumnPair(candidate, best)) {
				best = candidate
				found = true
			}
		}
	}
	return best, found
}

func lessColumnPair(a, b models.RelationshipEdge) bool {
	if a.SourceColumn != b.SourceColumn {
		return a.SourceColumn < b.SourceColumn
	}
	return a.TargetColumn < b.TargetColumn
}

// compatibleForJoin reports whether two columns' semantic types can form a
// join key: identifier-identifier, identifier-categorical in either
// direction, or numeric-numeric when both domains are small.
func compatibleForJoin(a, b models.Column) bool {
	ta, tb := a.SemanticType, b.SemanticType
	switch {
	case ta == models.SemanticIdentifier && tb == models.SemanticIdentifier:
		return true
	case ta == models.SemanticIdentifier && tb == models.SemanticCategorical,
		ta == models.SemanticCategorical && tb == models.SemanticIdentifier:
		return true
	case ta == models.SemanticNumeric && tb == models.SemanticNumeric:
		return smallNumericDomain(a.UniqueCount) && smallNumericDomain(b.UniqueCount)
	}
	return false
}

func smallNumericDomain(distinct int64) bool {
	return distinct >= minJoinDistinct && distinct <= maxNumericJoinDomain
}

func (b *relationshipBuilder) columnJoinSets(ds *models.Dataset) []map[string]struct{} {
	sets := make([]map[string]struct{}, len(ds.Columns))
	for idx, col := range ds.Columns {
		if !joinableType(col.SemanticType) {
			continue
		}
		numeric := col.SemanticType == models.SemanticNumeric
		set := make(map[string]struct{})
		for _, row := range ds.Rows {
			if idx >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[idx])
			if isNullValue(v) {
				continue
			}
			set[canonicalJoinValue(v, numeric)] = struct{}{}
			if len(set) >= b.distinctCap {
				break
			}
		}
		sets[idx] = set
	}
	return sets
}

func joinableType(semanticType string) bool {
	switch semanticType {
	case models.SemanticIdentifier, models.SemanticCategorical, models.SemanticNumeric:
		return true
	}
	return false
}

// canonicalJoinValue folds values for overlap comparison: numeric values go
// through parse/format so "1.0" and "1" collide, everything else compares
// case-insensitively.
func canonicalJoinValue(v string, numeric bool) string {
	if numeric {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return strings.ToLower(v)
}

func jaccardOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	var intersection int
	for v := range small {
		if _, ok := large[v]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
