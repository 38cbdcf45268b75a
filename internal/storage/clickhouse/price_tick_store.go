package clickhouse

import (
	"context"
	"fmt"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

type tickKey struct {
	symbol      string
	timestampMs int64
}

// InsertBulk adds multiple ticks. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	// Validate and check for intra-batch duplicates
	seen := make(map[tickKey]struct{}, len(ticks))
	for _, t := range ticks {
		if t == nil || t.Symbol == "" || t.TimestampMs < 0 || t.Volume < 0 {
			return storage.ErrInvalidInput
		}
		k := tickKey{t.Symbol, t.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, t := range ticks {
		exists, err := s.exists(ctx, t.Symbol, t.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (
			symbol, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.Symbol, uint64(t.TimestampMs),
			t.Open, t.High, t.Low, t.Close, t.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all ticks for a symbol, ordered by timestamp ASC.
func (s *PriceTickStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceTick, error) {
	query := `
		SELECT symbol, timestamp_ms, open, high, low, close, volume
		FROM price_ticks
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

// Symbols returns every symbol with at least one tick, sorted ASC.
func (s *PriceTickStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM price_ticks ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
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

// exists checks if a tick with the given key exists.
func (s *PriceTickStore) exists(ctx context.Context, symbol string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM price_ticks
		WHERE symbol = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceTicks scans multiple rows.
func scanPriceTicks(rows chRows) ([]*domain.PriceTick, error) {
	var ticks []*domain.PriceTick

	for rows.Next() {
		var t domain.PriceTick
		var timestampMs uint64

		err := rows.Scan(
			&t.Symbol, &timestampMs,
			&t.Open, &t.High, &t.Low, &t.Close, &t.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}

		t.TimestampMs = int64(timestampMs)
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}

	return ticks, nil
}
