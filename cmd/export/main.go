package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"crptrix-feature-lab/internal/config"
	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/export"
	"crptrix-feature-lab/internal/logging"
	pgstore "crptrix-feature-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (empty uses defaults)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to export (default: config)")
	output := flag.String("output", "-", "Output CSV path (- for stdout)")
	fromTime := flag.String("from-time", "", "Only rows at or after this time (RFC3339)")
	toTime := flag.String("to-time", "", "Only rows at or before this time (RFC3339)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath, func(c *config.Config) {
		if *symbols != "" {
			c.Pipeline.Symbols = config.ParseSymbols(*symbols)
		}
		// Exporting only reads the feature table.
		c.Storage.Raw = c.Storage.Features
		c.Metrics.Enabled = false
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	logger = logger.With().Str("cmd", "export").Logger()

	if err := run(context.Background(), cfg, logger, *output, *fromTime, *toTime); err != nil {
		logger.Error().Err(err).Msg("export failed")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, output, fromTime, toTime string) error {
	if cfg.Storage.Features != config.BackendPostgres {
		return errors.New("export reads a persistent feature store; set storage.features to postgres")
	}
	if len(cfg.Pipeline.Symbols) == 0 {
		return errors.New("no symbols to export: use --symbols, SYMBOLS or pipeline.symbols")
	}

	start, end, err := parseRange(fromTime, toTime)
	if err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, pgstore.WithMaxConns(cfg.Postgres.MaxConns))
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	store := pgstore.NewFeatureStore(pool)

	var rows []*domain.FeatureRow
	for _, symbol := range cfg.Pipeline.Symbols {
		var batch []*domain.FeatureRow
		if start == 0 && end == 0 {
			batch, err = store.GetBySymbol(ctx, symbol)
		} else {
			batch, err = store.GetByTimeRange(ctx, symbol, start, end)
		}
		if err != nil {
			return fmt.Errorf("read features for %s: %w", symbol, err)
		}
		logger.Info().Str("symbol", symbol).Int("rows", len(batch)).Msg("loaded feature rows")
		rows = append(rows, batch...)
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteCSV(w, rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	logger.Info().Int("rows", len(rows)).Str("output", output).Msg("export complete")
	return nil
}

// parseRange converts RFC3339 bounds to Unix milliseconds. Both empty means
// no range; a missing bound is open-ended.
func parseRange(fromTime, toTime string) (int64, int64, error) {
	if fromTime == "" && toTime == "" {
		return 0, 0, nil
	}

	var start, end int64 = 0, time.Now().UnixMilli()
	if fromTime != "" {
		t, err := time.Parse(time.RFC3339, fromTime)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --from-time: %w", err)
		}
		start = t.UnixMilli()
	}
	if toTime != "" {
		t, err := time.Parse(time.RFC3339, toTime)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --to-time: %w", err)
		}
		end = t.UnixMilli()
	}
	if end < start {
		return 0, 0, errors.New("--to-time is before --from-time")
	}
	return start, end, nil
}
