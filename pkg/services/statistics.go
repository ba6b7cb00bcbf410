package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/apperrors"
	"github.com/datagate-ai/datagate-engine/pkg/config"
	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/tabular"
)

// defaultTopValues is the categorical top-k when config leaves it unset.
const defaultTopValues = 5

// StatisticsService computes statistical profiles per (dataset, column) and
// caches them until the owning dataset is replaced.
type StatisticsService interface {
	// Profile returns the statistical profile of one column. Unknown
	// columns yield ErrProfilingUnavailable; malformed values never do.
	Profile(ds *models.Dataset, column string) (*models.StatisticalProfile, error)

	// InvalidateDataset drops every cached profile owned by the dataset.
	InvalidateDataset(datasetID uuid.UUID)
}

type profileKey struct {
	datasetID uuid.UUID
	column    string
}

type statisticsService struct {
	topK   int
	mu     sync.RWMutex
	cache  map[profileKey]*models.StatisticalProfile
	logger *zap.Logger
}

// NewStatisticsService creates a new StatisticsService.
func NewStatisticsService(cfg config.ProfilingConfig, logger *zap.Logger) StatisticsService {
	topK := cfg.TopValues
	if topK <= 0 {
		topK = defaultTopValues
	}
	return &statisticsService{
		topK:   topK,
		cache:  make(map[profileKey]*models.StatisticalProfile),
		logger: logger.Named("statistics"),
	}
}

func (s *statisticsService) Profile(ds *models.Dataset, column string) (*models.StatisticalProfile, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: no dataset", apperrors.ErrProfilingUnavailable)
	}
	idx := ds.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: dataset %q has no column %q", apperrors.ErrProfilingUnavailable, ds.Name, column)
	}

	key := profileKey{datasetID: ds.ID, column: column}
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	profile := s.computeProfile(ds, ds.Columns[idx], columnValues(ds.Rows, idx))

	s.mu.Lock()
	s.cache[key] = profile
	s.mu.Unlock()

	s.logger.Debug("profile computed",
		zap.String("dataset", ds.Name),
		zap.String("column", column),
		zap.String("semantic_type", profile.SemanticType),
		zap.Bool("not_applicable", profile.NotApplicable))
	return profile, nil
}

func (s *statisticsService) InvalidateDataset(datasetID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped int
	for key := range s.cache {
		if key.datasetID == datasetID {
			delete(s.cache, key)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug("profile cache invalidated",
			zap.String("dataset_id", datasetID.String()),
			zap.Int("dropped", dropped))
	}
}

// computeProfile dispatches on the column's semantic type: numeric and
// date-like columns get a five-number summary (dates over Unix seconds),
// everything else gets a top-k frequency distribution.
func (s *statisticsService) computeProfile(ds *models.Dataset, col models.Column, values []string) *models.StatisticalProfile {
	profile := &models.StatisticalProfile{
		DatasetName:  ds.Name,
		ColumnName:   col.Name,
		SemanticType: col.SemanticType,
		NullCount:    col.NullCount,
		UniqueCount:  col.UniqueCount,
	}

	nonNull := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if isNullValue(v) {
			continue
		}
		nonNull = append(nonNull, v)
	}
	if len(nonNull) == 0 {
		profile.NotApplicable = true
		return profile
	}

	switch col.SemanticType {
	case models.SemanticNumeric:
		profile.Numeric = numericSummary(parseFloats(nonNull))
	case models.SemanticDate:
		profile.Numeric = numericSummary(dateSeconds(nonNull))
	default:
		profile.Categorical = categoricalSummary(nonNull, s.topK)
	}

	if profile.Numeric == nil && profile.Categorical == nil {
		profile.NotApplicable = true
	}
	return profile
}

var (
	_ StatisticsService          = (*statisticsService)(nil)
	_ tabular.ProfileInvalidator = (*statisticsService)(nil)
)

func parseFloats(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !isNumericValue(v) {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

func dateSeconds(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		t, ok := parseDateLike(v)
		if !ok {
			continue
		}
		out = append(out, float64(t.Unix()))
	}
	return out
}

// numericSummary computes the five-number summary plus mean and the
// 1.5-IQR outlier count. Returns nil when no values parsed.
func numericSummary(values []float64) *models.NumericSummary {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	median := quantile(sorted, 0.5)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lowerFence := q1 - 1.5*iqr
	upperFence := q3 + 1.5*iqr

	var sum float64
	var outliers int64
	for _, v := range sorted {
		sum += v
		if v < lowerFence || v > upperFence {
			outliers++
		}
	}

	return &models.NumericSummary{
		Min:          sorted[0],
		Q1:           q1,
		Median:       median,
		Q3:           q3,
		Max:          sorted[len(sorted)-1],
		Mean:         sum / float64(len(sorted)),
		IQR:          iqr,
		OutlierCount: outliers,
	}
}

// quantile interpolates linearly between ranks: pos = (n-1)·p.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := float64(n-1) * p
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// categoricalSummary returns the top-k values by descending count, ties
// broken by first-seen order. Fractions are relative to the non-null count.
func categoricalSummary(values []string, k int) *models.CategoricalSummary {
	counts := make(map[string]int64, len(values))
	order := make([]string, 0)
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if k > len(order) {
		k = len(order)
	}

	total := float64(len(values))
	top := make([]models.ValueFrequency, 0, k)
	for _, v := range order[:k] {
		top = append(top, models.ValueFrequency{
			Value:    v,
			Count:    counts[v],
			Fraction: float64(counts[v]) / total,
		})
	}
	return &models.CategoricalSummary{TopValues: top}
}
