package clickhouse

import (
	"context"
	"fmt"
	"sync"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// SentimentStore implements storage.SentimentStore using ClickHouse.
// ClickHouse has no sequences, so IDs continue from max(id) under a lock.
// Only one process may ingest into a given table.
type SentimentStore struct {
	conn *Conn
	mu   sync.Mutex
}

// NewSentimentStore creates a new SentimentStore.
func NewSentimentStore(conn *Conn) *SentimentStore {
	return &SentimentStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SentimentStore = (*SentimentStore)(nil)

// InsertBulk adds multiple observations and writes the assigned IDs back.
func (s *SentimentStore) InsertBulk(ctx context.Context, observations []*domain.SentimentObservation) error {
	if len(observations) == 0 {
		return nil
	}
	for _, o := range observations {
		if o == nil || o.Symbol == "" || o.TimestampMs < 0 || !o.ValidScore() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(id) FROM news_sentiment`).Scan(&maxID); err != nil {
		return fmt.Errorf("query max id: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO news_sentiment (
			id, symbol, timestamp_ms, sentiment_score, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, o := range observations {
		id := maxID + uint64(i) + 1
		if err := batch.Append(id, o.Symbol, uint64(o.TimestampMs), o.Score, o.Source); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	for i, o := range observations {
		o.ID = int64(maxID) + int64(i) + 1
	}

	return nil
}

// GetBySymbol retrieves all observations for a symbol, ordered by (timestamp ASC, id ASC).
func (s *SentimentStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.SentimentObservation, error) {
	query := `
		SELECT id, symbol, timestamp_ms, sentiment_score, source
		FROM news_sentiment
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	var observations []*domain.SentimentObservation
	for rows.Next() {
		var o domain.SentimentObservation
		var id, timestampMs uint64

		if err := rows.Scan(&id, &o.Symbol, &timestampMs, &o.Score, &o.Source); err != nil {
			return nil, fmt.Errorf("scan sentiment row: %w", err)
		}

		o.ID = int64(id)
		o.TimestampMs = int64(timestampMs)
		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sentiment rows: %w", err)
	}

	return observations, nil
}
