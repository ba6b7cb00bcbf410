package tabular

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/models"
)

// ModelBuilder assembles a unified model from the current dataset set. The
// builder must be pure: it returns a complete model and never an error, so
// the store can swap models atomically.
type ModelBuilder interface {
	Build(datasets []*models.Dataset) *models.UnifiedModel
}

// ProfileInvalidator drops cached statistics owned by a dataset that is no
// longer current.
type ProfileInvalidator interface {
	InvalidateDataset(datasetID uuid.UUID)
}

// Store is the copy-on-write registry of uploaded datasets. Every change to
// the dataset set rebuilds the unified model from scratch and swaps it in
// whole, so concurrent readers see either the previous complete model or the
// next one, never an intermediate state.
type Store struct {
	mu           sync.RWMutex
	datasets     map[string]*models.Dataset
	order        []string // first-upload order, stable across replacements
	model        *models.UnifiedModel
	builder      ModelBuilder
	invalidators []ProfileInvalidator
	logger       *zap.Logger
}

// NewStore creates an empty store. Snapshot is valid immediately and returns
// an empty model until the first upload.
func NewStore(builder ModelBuilder, logger *zap.Logger) *Store {
	return &Store{
		datasets: make(map[string]*models.Dataset),
		model:    builder.Build(nil),
		builder:  builder,
		logger:   logger.Named("dataset-store"),
	}
}

// AddInvalidator registers a cache to notify when a dataset is replaced or
// removed.
func (s *Store) AddInvalidator(inv ProfileInvalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidators = append(s.invalidators, inv)
}

// Put stores a dataset under its name, replacing any dataset already held
// under that name, and returns the rebuilt model. The replaced dataset's
// cached profiles are invalidated by ID, so readers holding the previous
// snapshot are unaffected.
func (s *Store) Put(ds *models.Dataset) *models.UnifiedModel {
	s.mu.Lock()
	prev, replacing := s.datasets[ds.Name]

	next := make(map[string]*models.Dataset, len(s.datasets)+1)
	for name, d := range s.datasets {
		next[name] = d
	}
	next[ds.Name] = ds
	s.datasets = next
	if !replacing {
		s.order = append(s.order, ds.Name)
	}

	model := s.builder.Build(s.orderedLocked())
	s.model = model
	invs := s.invalidatorsLocked()
	s.mu.Unlock()

	if replacing {
		for _, inv := range invs {
			inv.InvalidateDataset(prev.ID)
		}
	}
	s.logger.Info("dataset stored",
		zap.String("dataset", ds.Name),
		zap.Bool("replaced", replacing),
		zap.Int64("row_count", ds.RowCount),
		zap.Int("datasets", len(model.Datasets)),
		zap.Int("edges", len(model.Edges)))
	return model
}

// Remove drops the named dataset, rebuilds the model, and reports whether
// the dataset existed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	prev, ok := s.datasets[name]
	if !ok {
		s.mu.Unlock()
		return false
	}

	next := make(map[string]*models.Dataset, len(s.datasets)-1)
	for n, d := range s.datasets {
		if n != name {
			next[n] = d
		}
	}
	s.datasets = next
	order := make([]string, 0, len(s.order)-1)
	for _, n := range s.order {
		if n != name {
			order = append(order, n)
		}
	}
	s.order = order

	s.model = s.builder.Build(s.orderedLocked())
	invs := s.invalidatorsLocked()
	s.mu.Unlock()

	for _, inv := range invs {
		inv.InvalidateDataset(prev.ID)
	}
	s.logger.Info("dataset removed", zap.String("dataset", name))
	return true
}

// Clear drops every dataset and resets the model.
func (s *Store) Clear() {
	s.mu.Lock()
	removed := make([]uuid.UUID, 0, len(s.datasets))
	for _, d := range s.datasets {
		removed = append(removed, d.ID)
	}
	s.datasets = make(map[string]*models.Dataset)
	s.order = nil
	s.model = s.builder.Build(nil)
	invs := s.invalidatorsLocked()
	s.mu.Unlock()

	for _, id := range removed {
		for _, inv := range invs {
			inv.InvalidateDataset(id)
		}
	}
	s.logger.Info("dataset store cleared", zap.Int("removed", len(removed)))
}

// Snapshot returns the current complete model. The model is immutable;
// callers may hold it across store mutations.
func (s *Store) Snapshot() *models.UnifiedModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Get returns the named dataset as currently stored.
func (s *Store) Get(name string) (*models.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[name]
	return ds, ok
}

// Datasets returns the stored datasets in first-upload order.
func (s *Store) Datasets() []*models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedLocked()
}

func (s *Store) orderedLocked() []*models.Dataset {
	out := make([]*models.Dataset, 0, len(s.order))
	for _, name := range s.order {
		if ds, ok := s.datasets[name]; ok {
			out = append(out, ds)
		}
	}
	return out
}

func (s *Store) invalidatorsLocked() []ProfileInvalidator {
	return append([]ProfileInvalidator(nil), s.invalidators...)
}
