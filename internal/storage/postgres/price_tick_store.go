package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using PostgreSQL.
type PriceTickStore struct {
	pool *Pool
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(pool *Pool) *PriceTickStore {
	return &PriceTickStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk adds multiple ticks atomically. Fails entire batch on any duplicate.
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO price_ticks (
			symbol, timestamp_ms, open, high, low, close, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, t := range ticks {
		_, err := tx.Exec(ctx, query,
			t.Symbol,
			t.TimestampMs,
			t.Open,
			t.High,
			t.Low,
			t.Close,
			t.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			if isCheckViolation(err) {
				return storage.ErrInvalidInput
			}
			return fmt.Errorf("insert price tick in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all ticks for a symbol, ordered by timestamp ASC.
func (s *PriceTickStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceTick, error) {
	query := `
		SELECT symbol, timestamp_ms, open, high, low, close, volume
		FROM price_ticks
		WHERE symbol = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get price ticks by symbol: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

// Symbols returns every symbol with at least one tick, sorted ASC.
func (s *PriceTickStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM price_ticks ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get price tick symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}

	return symbols, nil
}

// scanPriceTicks scans multiple rows into a slice of PriceTick.
func scanPriceTicks(rows pgx.Rows) ([]*domain.PriceTick, error) {
	var ticks []*domain.PriceTick

	for rows.Next() {
		var t domain.PriceTick

		err := rows.Scan(
			&t.Symbol,
			&t.TimestampMs,
			&t.Open,
			&t.High,
			&t.Low,
			&t.Close,
			&t.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}

		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}

	return ticks, nil
}
