package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: postgres://u:p@localhost:5432/features
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, c.Storage.Features)
	assert.Equal(t, BackendPostgres, c.Storage.Raw)
	assert.Equal(t, int32(8), c.Postgres.MaxConns)
	assert.Equal(t, 4, c.Pipeline.Parallelism)
	assert.Equal(t, 5*time.Minute, c.Pipeline.RunTimeout)
	assert.Zero(t, c.Pipeline.Interval)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, ":9090", c.Metrics.Addr)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  features: postgres
  raw: clickhouse
postgres:
  dsn: postgres://localhost/features
  max_conns: 16
clickhouse:
  dsn: clickhouse://localhost:9000/market
pipeline:
  symbols: [btc, " eth ", BTC, ""]
  parallelism: 2
  interval: 1h
metrics:
  enabled: false
log:
  level: debug
  format: json
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendClickHouse, c.Storage.Raw)
	assert.Equal(t, int32(16), c.Postgres.MaxConns)
	assert.Equal(t, []string{"BTC", "ETH"}, c.Pipeline.Symbols)
	assert.Equal(t, time.Hour, c.Pipeline.Interval)
	assert.False(t, c.Metrics.Enabled, "explicit false must survive defaults")
	assert.Equal(t, "json", c.Log.Format)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing postgres dsn", "storage:\n  features: postgres\n"},
		{"missing clickhouse dsn", "storage:\n  features: memory\n  raw: clickhouse\n"},
		{"unknown backend", "storage:\n  features: sqlite\n  raw: memory\n"},
		{"bad parallelism", "storage:\n  features: memory\n  raw: memory\npipeline:\n  parallelism: 0\n"},
		{"bad log level", "storage:\n  features: memory\n  raw: memory\nlog:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/features")
	t.Setenv("CLICKHOUSE_DSN", "clickhouse://env:9000/market")
	t.Setenv("SYMBOLS", "sol, btc")
	t.Setenv("LOG_LEVEL", "warn")

	// No file: defaults require a DSN that only the environment supplies.
	c, err := LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/features", c.Postgres.DSN)
	assert.Equal(t, "clickhouse://env:9000/market", c.ClickHouse.DSN)
	assert.Equal(t, []string{"SOL", "BTC"}, c.Pipeline.Symbols)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadWithEnv_OverrideBeforeValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CLICKHOUSE_DSN", "")

	_, err := LoadWithEnv("")
	require.Error(t, err, "postgres defaults need a DSN")

	c, err := LoadWithEnv("", func(c *Config) {
		c.Storage.Features = BackendMemory
		c.Storage.Raw = BackendMemory
	})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.Storage.Features)
	assert.Equal(t, BackendMemory, c.Storage.Raw)
}

func TestValidate_Schedule(t *testing.T) {
	c, err := LoadWithEnv("", func(c *Config) {
		c.Storage.Features = BackendMemory
		c.Storage.Raw = BackendMemory
		c.Pipeline.Schedule = "5 * * * *"
	})
	require.NoError(t, err)

	c.Pipeline.Interval = time.Hour
	assert.ErrorContains(t, c.Validate(), "mutually exclusive")

	c.Pipeline.Interval = 0
	c.Pipeline.Schedule = "every hour"
	assert.ErrorContains(t, c.Validate(), "pipeline.schedule")
}

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTC", "ETH"}, ParseSymbols("btc,,ETH, btc "))
	assert.Nil(t, ParseSymbols(""))
}
