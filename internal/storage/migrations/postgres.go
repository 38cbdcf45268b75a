package migrations

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crptrix-feature-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger zerolog.Logger) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		logger.Debug().Str("backend", "postgres").Str("migration", m.name).Msg("applied migration")
	}

	logger.Info().Str("backend", "postgres").Int("count", len(files)).Msg("migrations applied")
	return nil
}
