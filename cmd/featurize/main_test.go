package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crptrix-feature-lab/internal/config"
	"crptrix-feature-lab/internal/observability"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SYMBOLS", "")

	cfg, err := config.LoadWithEnv("", func(c *config.Config) {
		c.Storage.Features = config.BackendMemory
		c.Storage.Raw = config.BackendMemory
		c.Pipeline.Symbols = []string{"BTC", "ETH"}
		c.Metrics.Enabled = false
	})
	require.NoError(t, err)
	return cfg
}

func TestRun_MemoryOnceWithReport(t *testing.T) {
	cfg := memoryConfig(t)
	dir := filepath.Join(t.TempDir(), "out")
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	err := run(context.Background(), cfg, zerolog.Nop(), metrics, options{
		fixtureHours: 100,
		verify:       true,
		check:        true,
		reportDir:    dir,
	})
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "BTC")
	assert.Contains(t, string(md), "ETH")

	csv, err := os.ReadFile(filepath.Join(dir, "runs.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "BTC")
}

func TestRun_CanceledInterval(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Pipeline.Interval = 1 << 40

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cfg, zerolog.Nop(), nil, options{fixtureHours: 60})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CanceledSchedule(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Pipeline.Schedule = "0 0 1 1 *"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cfg, zerolog.Nop(), nil, options{fixtureHours: 60})
	assert.ErrorIs(t, err, context.Canceled)
}
