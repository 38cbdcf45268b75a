package memory

import (
	"context"
	"sort"
	"sync"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// SentimentStore is an in-memory implementation of storage.SentimentStore.
type SentimentStore struct {
	mu     sync.RWMutex
	data   []*domain.SentimentObservation // append-only, ingestion order
	nextID int64
}

// NewSentimentStore creates a new in-memory sentiment store.
func NewSentimentStore() *SentimentStore {
	return &SentimentStore{nextID: 1}
}

// InsertBulk adds multiple observations atomically and assigns IDs in input order.
func (s *SentimentStore) InsertBulk(_ context.Context, observations []*domain.SentimentObservation) error {
	if len(observations) == 0 {
		return nil
	}

	for _, o := range observations {
		if o == nil || o.Symbol == "" || !o.ValidScore() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range observations {
		o.ID = s.nextID
		s.nextID++
		obsCopy := *o
		s.data = append(s.data, &obsCopy)
	}

	return nil
}

// GetBySymbol retrieves all observations for a symbol, ordered by (timestamp ASC, id ASC).
func (s *SentimentStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.SentimentObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SentimentObservation
	for _, o := range s.data {
		if o.Symbol == symbol {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ storage.SentimentStore = (*SentimentStore)(nil)
