package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"crptrix-feature-lab/internal/domain"
)

// setupTestDB starts a PostgreSQL container, applies the migration files and
// returns a pool. The container is terminated when the test ends.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("features"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn, WithMaxConns(8))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// The migrations package imports this one, so its SQL is read from disk.
	files, err := filepath.Glob(filepath.Join("..", "migrations", "postgres", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no postgres migrations found")
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "failed to apply %s", filepath.Base(file))
	}

	return pool
}

const hourMs = int64(3_600_000)

func tick(symbol string, hour int, close float64) *domain.PriceTick {
	return &domain.PriceTick{
		Symbol:      symbol,
		TimestampMs: int64(hour) * hourMs,
		Open:        close,
		High:        close + 1,
		Low:         close - 1,
		Close:       close,
		Volume:      1000,
	}
}

func featureRow(symbol string, hour int, ret float64) *domain.FeatureRow {
	return &domain.FeatureRow{
		Symbol:              symbol,
		TimestampMs:         int64(hour) * hourMs,
		Return24h:           ret,
		Volatility24h:       0.5,
		VolumeChange24h:     0.1,
		AvgNewsSentiment24h: 0.2,
		SentimentMomentum:   -0.1,
		Label:               1,
	}
}
