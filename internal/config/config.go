// Package config loads the featurize/export configuration from YAML with
// defaults, environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// Config is the root configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// StorageConfig selects where raw data is read from and features are written to.
type StorageConfig struct {
	// Features is always a transactional store.
	Features string `yaml:"features" default:"postgres" validate:"oneof=postgres memory"`
	// Raw holds price ticks and sentiment.
	Raw string `yaml:"raw" default:"postgres" validate:"oneof=postgres clickhouse memory"`
}

// PostgresConfig configures the pgx pool.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns" default:"8" validate:"gte=1,lte=256"`
}

// ClickHouseConfig configures the raw ClickHouse store.
type ClickHouseConfig struct {
	DSN string `yaml:"dsn"`
}

// PipelineConfig controls what runs and how often.
type PipelineConfig struct {
	Symbols     []string      `yaml:"symbols"`
	Parallelism int           `yaml:"parallelism" default:"4" validate:"gte=1,lte=64"`
	Interval    time.Duration `yaml:"interval" validate:"gte=0"` // 0 runs once
	Schedule    string        `yaml:"schedule"`                  // standard 5-field cron spec, exclusive with interval
	RunTimeout  time.Duration `yaml:"run_timeout" default:"5m" validate:"gt=0"`
}

// MetricsConfig configures the /metrics and /health listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Addr    string `yaml:"addr" default:":9090"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stderr" validate:"required"`
}

var validate = validator.New()

// Load reads a YAML configuration file on top of defaults and validates it.
// An empty path uses defaults only.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Override mutates a parsed config before validation.
type Override func(*Config)

// LoadWithEnv loads config like Load and overrides it with environment
// variables, then with overrides in order, before validating.
func LoadWithEnv(path string, overrides ...Override) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.ClickHouse.DSN = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Pipeline.Symbols = ParseSymbols(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	for _, o := range overrides {
		o(c)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func parse(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set config defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.Pipeline.Symbols = normalizeSymbols(c.Pipeline.Symbols)
	return &c, nil
}

// Validate checks field rules and the DSNs the selected backends need.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Storage.Features == BackendPostgres || c.Storage.Raw == BackendPostgres {
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres backend (or set DATABASE_URL)"))
		}
	}
	if c.Storage.Raw == BackendClickHouse && c.ClickHouse.DSN == "" {
		errs = append(errs, errors.New("clickhouse.dsn is required for the clickhouse raw backend (or set CLICKHOUSE_DSN)"))
	}
	if c.Pipeline.Schedule != "" {
		if c.Pipeline.Interval > 0 {
			errs = append(errs, errors.New("pipeline.interval and pipeline.schedule are mutually exclusive"))
		}
		if _, err := cron.ParseStandard(c.Pipeline.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.schedule: %w", err))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// ParseSymbols splits a comma-separated list, trimming blanks and duplicates.
func ParseSymbols(s string) []string {
	return normalizeSymbols(strings.Split(s, ","))
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
