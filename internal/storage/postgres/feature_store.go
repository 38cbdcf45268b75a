package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const featureColumns = `
	symbol, timestamp_ms,
	return_24h, volatility_24h, volume_change_24h,
	avg_news_sentiment_24h, sentiment_momentum,
	label
`

// ExistingTimestamps returns every timestamp already stored for a symbol, ASC.
func (s *FeatureStore) ExistingTimestamps(ctx context.Context, symbol string) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT timestamp_ms FROM features WHERE symbol = $1 ORDER BY timestamp_ms ASC`,
		symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("get existing feature timestamps: %w", err)
	}
	defer rows.Close()

	var timestamps []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan feature timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature timestamps: %w", err)
	}

	return timestamps, nil
}

// InsertIfAbsent adds rows in one transaction with ON CONFLICT DO NOTHING.
// A row that a concurrent run committed first is ignored, not overwritten.
// Returns the number of rows actually inserted.
func (s *FeatureStore) InsertIfAbsent(ctx context.Context, rows []*domain.FeatureRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, r := range rows {
		if r == nil || r.Symbol == "" {
			return 0, storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO features (` + featureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timestamp_ms) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query,
			r.Symbol,
			r.TimestampMs,
			r.Return24h,
			r.Volatility24h,
			r.VolumeChange24h,
			r.AvgNewsSentiment24h,
			r.SentimentMomentum,
			r.Label,
		)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			if isCheckViolation(err) {
				return 0, storage.ErrInvalidInput
			}
			return 0, fmt.Errorf("insert feature row: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// GetBySymbol retrieves all rows for a symbol, ordered by timestamp ASC.
func (s *FeatureStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.FeatureRow, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features
		WHERE symbol = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get features by symbol: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetByTimeRange retrieves rows for a symbol within [start, end] (inclusive).
func (s *FeatureStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FeatureRow, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get features by time range: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetLatest retrieves the most recent row for a symbol. Returns ErrNotFound if none.
func (s *FeatureStore) GetLatest(ctx context.Context, symbol string) (*domain.FeatureRow, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM features
		WHERE symbol = $1
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	var r domain.FeatureRow
	err := scanFeatureRow(s.pool.QueryRow(ctx, query, symbol), &r)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest feature row: %w", err)
	}

	return &r, nil
}

// scanFeatureRow scans one row in featureColumns order.
func scanFeatureRow(row pgx.Row, r *domain.FeatureRow) error {
	var label int16
	err := row.Scan(
		&r.Symbol,
		&r.TimestampMs,
		&r.Return24h,
		&r.Volatility24h,
		&r.VolumeChange24h,
		&r.AvgNewsSentiment24h,
		&r.SentimentMomentum,
		&label,
	)
	if err != nil {
		return err
	}
	r.Label = int(label)
	return nil
}

// scanFeatureRows scans multiple rows into a slice of FeatureRow.
func scanFeatureRows(rows pgx.Rows) ([]*domain.FeatureRow, error) {
	var result []*domain.FeatureRow

	for rows.Next() {
		var r domain.FeatureRow
		if err := scanFeatureRow(rows, &r); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}

	return result, nil
}
