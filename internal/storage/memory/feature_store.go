package memory

import (
	"context"
	"sort"
	"sync"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

type featureKey struct {
	symbol      string
	timestampMs int64
}

// FeatureStore is an in-memory implementation of storage.FeatureStore.
// The mutex is held for a whole InsertIfAbsent batch, so check-and-insert is atomic.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[featureKey]*domain.FeatureRow
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[featureKey]*domain.FeatureRow),
	}
}

// ExistingTimestamps returns every timestamp already stored for a symbol, ASC.
func (s *FeatureStore) ExistingTimestamps(_ context.Context, symbol string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []int64
	for k := range s.data {
		if k.symbol == symbol {
			result = append(result, k.timestampMs)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result, nil
}

// InsertIfAbsent adds rows whose key is not yet present. Existing keys are
// ignored; the first occurrence wins for intra-batch duplicates.
func (s *FeatureStore) InsertIfAbsent(_ context.Context, rows []*domain.FeatureRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	for _, r := range rows {
		if r == nil || r.Symbol == "" || (r.Label != 0 && r.Label != 1) {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range rows {
		key := featureKey{r.Symbol, r.TimestampMs}
		if _, exists := s.data[key]; exists {
			continue
		}
		rowCopy := *r
		s.data[key] = &rowCopy
		inserted++
	}

	return inserted, nil
}

// GetBySymbol retrieves all rows for a symbol, ordered by timestamp ASC.
func (s *FeatureStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.FeatureRow, error) {
	return s.filter(func(r *domain.FeatureRow) bool {
		return r.Symbol == symbol
	}), nil
}

// GetByTimeRange retrieves rows for a symbol within [start, end] (inclusive).
func (s *FeatureStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.FeatureRow, error) {
	return s.filter(func(r *domain.FeatureRow) bool {
		return r.Symbol == symbol && r.TimestampMs >= start && r.TimestampMs <= end
	}), nil
}

// GetLatest retrieves the most recent row for a symbol.
func (s *FeatureStore) GetLatest(ctx context.Context, symbol string) (*domain.FeatureRow, error) {
	rows, _ := s.GetBySymbol(ctx, symbol)
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[len(rows)-1], nil
}

// Count returns the number of rows stored for a symbol.
func (s *FeatureStore) Count(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.data {
		if k.symbol == symbol {
			n++
		}
	}
	return n
}

func (s *FeatureStore) filter(match func(*domain.FeatureRow) bool) []*domain.FeatureRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for _, r := range s.data {
		if match(r) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

var _ storage.FeatureStore = (*FeatureStore)(nil)
