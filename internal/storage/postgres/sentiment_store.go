package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// SentimentStore implements storage.SentimentStore using PostgreSQL.
type SentimentStore struct {
	pool *Pool
}

// NewSentimentStore creates a new SentimentStore.
func NewSentimentStore(pool *Pool) *SentimentStore {
	return &SentimentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SentimentStore = (*SentimentStore)(nil)

// InsertBulk adds multiple observations atomically. IDs come from the
// BIGSERIAL sequence in input order and are written back to the observations.
func (s *SentimentStore) InsertBulk(ctx context.Context, observations []*domain.SentimentObservation) error {
	if len(observations) == 0 {
		return nil
	}
	for _, o := range observations {
		if o == nil || o.Symbol == "" || !o.ValidScore() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO news_sentiment (symbol, timestamp_ms, sentiment_score, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	ids := make([]int64, len(observations))
	for i, o := range observations {
		err := tx.QueryRow(ctx, query, o.Symbol, o.TimestampMs, o.Score, o.Source).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("insert sentiment in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, o := range observations {
		o.ID = ids[i]
	}

	return nil
}

// GetBySymbol retrieves all observations for a symbol, ordered by (timestamp ASC, id ASC).
func (s *SentimentStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.SentimentObservation, error) {
	query := `
		SELECT id, symbol, timestamp_ms, sentiment_score, source
		FROM news_sentiment
		WHERE symbol = $1
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get sentiment by symbol: %w", err)
	}
	defer rows.Close()

	return scanSentiment(rows)
}

// scanSentiment scans multiple rows into a slice of SentimentObservation.
func scanSentiment(rows pgx.Rows) ([]*domain.SentimentObservation, error) {
	var observations []*domain.SentimentObservation

	for rows.Next() {
		var o domain.SentimentObservation

		if err := rows.Scan(&o.ID, &o.Symbol, &o.TimestampMs, &o.Score, &o.Source); err != nil {
			return nil, fmt.Errorf("scan sentiment row: %w", err)
		}

		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sentiment rows: %w", err)
	}

	return observations, nil
}
