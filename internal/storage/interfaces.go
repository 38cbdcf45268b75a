package storage

import (
	"context"

	"crptrix-feature-lab/internal/domain"
)

// PriceTickStore provides access to price_ticks storage (raw store).
type PriceTickStore interface {
	// InsertBulk adds multiple ticks atomically. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetBySymbol retrieves all ticks for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceTick, error)

	// Symbols returns every symbol with at least one tick, sorted ASC.
	Symbols(ctx context.Context) ([]string, error)
}

// SentimentStore provides access to news_sentiment storage (raw store).
type SentimentStore interface {
	// InsertBulk adds multiple observations atomically and assigns their IDs in input order.
	InsertBulk(ctx context.Context, observations []*domain.SentimentObservation) error

	// GetBySymbol retrieves all observations for a symbol, ordered by (timestamp ASC, id ASC).
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.SentimentObservation, error)
}

// FeatureStore provides access to features storage.
// Rows are never updated or deleted once written.
type FeatureStore interface {
	// ExistingTimestamps returns every timestamp already materialized for a symbol.
	ExistingTimestamps(ctx context.Context, symbol string) ([]int64, error)

	// InsertIfAbsent adds rows in a single transaction. Rows whose (symbol, timestamp_ms)
	// already exists are ignored, never overwritten. Returns the number of rows inserted.
	InsertIfAbsent(ctx context.Context, rows []*domain.FeatureRow) (int, error)

	// GetBySymbol retrieves all rows for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.FeatureRow, error)

	// GetByTimeRange retrieves rows for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FeatureRow, error)

	// GetLatest retrieves the most recent row for a symbol. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, symbol string) (*domain.FeatureRow, error)
}
