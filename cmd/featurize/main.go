package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"crptrix-feature-lab/internal/config"
	"crptrix-feature-lab/internal/logging"
	"crptrix-feature-lab/internal/observability"
	"crptrix-feature-lab/internal/pipeline"
	"crptrix-feature-lab/internal/reporting"
	"crptrix-feature-lab/internal/storage"
	chstore "crptrix-feature-lab/internal/storage/clickhouse"
	"crptrix-feature-lab/internal/storage/memory"
	"crptrix-feature-lab/internal/storage/migrations"
	pgstore "crptrix-feature-lab/internal/storage/postgres"
	"crptrix-feature-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (empty uses defaults)")
	symbols := flag.String("symbols", "", "Comma-separated symbols (default: config, then every symbol with price ticks)")
	interval := flag.Duration("interval", -1, "Run every interval until interrupted (0 runs once; default: config)")
	schedule := flag.String("schedule", "", "Run on a cron schedule, e.g. \"5 * * * *\" (default: config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage seeded with fixture data")
	fixtureHours := flag.Int("fixture-hours", 24*14, "Hours of fixture data per symbol with --use-memory")
	verify := flag.Bool("verify", false, "Recompute stored rows after each run and report divergences")
	check := flag.Bool("check", false, "Run data sufficiency checks before each run")
	reportDir := flag.String("report-dir", "", "Write report.md and runs.csv to this directory after each run")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath, func(c *config.Config) {
		if *symbols != "" {
			c.Pipeline.Symbols = config.ParseSymbols(*symbols)
		}
		if *interval >= 0 {
			c.Pipeline.Interval = *interval
		}
		if *schedule != "" {
			c.Pipeline.Schedule = *schedule
		}
		if *useMemory {
			c.Storage.Features = config.BackendMemory
			c.Storage.Raw = config.BackendMemory
		}
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
	logger = logger.With().Str("cmd", "featurize").Logger()

	metrics := observability.NewMetrics("", nil)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Addr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received signal, initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("received second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger, metrics, options{
		fixtureHours: *fixtureHours,
		verify:       *verify,
		check:        *check,
		reportDir:    *reportDir,
	})

	done <- err
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("featurize failed")
		logCloser.Close()
		os.Exit(1)
	}

	logger.Info().Msg("shutdown complete")
}

type options struct {
	fixtureHours int
	verify       bool
	check        bool
	reportDir    string
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics, opts options) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.Storage.Raw == config.BackendMemory {
		seed := cfg.Pipeline.Symbols
		if len(seed) == 0 {
			seed = pipeline.FixtureSymbols
		}
		if err := pipeline.LoadFixtures(ctx, st.prices, st.sentiment, seed, opts.fixtureHours); err != nil {
			return err
		}
		logger.Info().Strs("symbols", seed).Int("hours", opts.fixtureHours).Msg("seeded in-memory fixtures")
	}

	runner := pipeline.NewRunner(st.prices, st.sentiment, st.features, logger).WithMetrics(metrics)
	checker := pipeline.NewSufficiencyChecker(st.prices, st.sentiment)
	verifier := verification.NewRecomputeVerifier(st.prices, st.sentiment, st.features, logger).WithMetrics(metrics)

	once := func() error {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()
		return runOnce(runCtx, cfg, logger, runner, checker, verifier, opts)
	}

	if cfg.Pipeline.Schedule != "" {
		return runScheduled(ctx, cfg.Pipeline.Schedule, logger, once)
	}
	if cfg.Pipeline.Interval == 0 {
		return once()
	}

	logger.Info().Dur("interval", cfg.Pipeline.Interval).Msg("running on interval")
	ticker := time.NewTicker(cfg.Pipeline.Interval)
	defer ticker.Stop()

	for {
		// A failed run is retried on the next tick.
		if err := once(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error().Err(err).Msg("run failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runScheduled runs once on every cron tick until ctx is done. A tick that
// fires while the previous run is still going is skipped.
func runScheduled(ctx context.Context, spec string, logger zerolog.Logger, once func() error) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if err := once(); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("scheduled run failed")
		}
	}); err != nil {
		return fmt.Errorf("parse schedule: %w", err)
	}

	logger.Info().Str("schedule", spec).Msg("running on schedule")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func runOnce(
	ctx context.Context,
	cfg *config.Config,
	logger zerolog.Logger,
	runner *pipeline.Runner,
	checker *pipeline.SufficiencyChecker,
	verifier *verification.RecomputeVerifier,
	opts options,
) error {
	symbols := cfg.Pipeline.Symbols
	if len(symbols) == 0 {
		all, err := runner.Symbols(ctx)
		if err != nil {
			return err
		}
		symbols = all
	}

	var quality []*pipeline.SufficiencyResult
	if opts.check {
		for _, symbol := range symbols {
			res, err := checker.Check(ctx, symbol)
			if err != nil {
				return fmt.Errorf("sufficiency check for %s: %w", symbol, err)
			}
			if !res.AllPass {
				logger.Warn().Str("symbol", symbol).Strs("errors", res.Errors).Msg("data sufficiency checks failed")
			}
			quality = append(quality, res)
		}
	}

	results, err := runner.RunSymbols(ctx, symbols, cfg.Pipeline.Parallelism)
	if err != nil {
		return err
	}
	for _, res := range results {
		logger.Info().
			Str("symbol", res.Symbol).
			Int("ticks", res.Ticks).
			Int("existing", res.Existing).
			Int("inserted", res.Write.Inserted).
			Int("conflicts", res.Write.Conflicts).
			Dur("duration", res.Duration).
			Msg("symbol run complete")
	}

	var reports []*verification.Report
	if opts.verify {
		reports, err = verifier.VerifyAll(ctx, symbols)
		if err != nil {
			return err
		}
		for _, r := range reports {
			if !r.OK() {
				logger.Warn().
					Str("symbol", r.Symbol).
					Int("divergent", r.Divergent).
					Int("missing", r.Missing).
					Int("orphaned", r.Orphaned).
					Msg("stored features diverge from recomputation")
			}
		}
	}

	if opts.reportDir != "" {
		if err := writeReport(opts.reportDir, reporting.Build(time.Now().UTC(), results, quality, reports)); err != nil {
			return err
		}
		logger.Info().Str("dir", opts.reportDir).Msg("report written")
	}

	return nil
}

func writeReport(dir string, r *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(reporting.RenderMarkdown(r)), 0o644); err != nil {
		return fmt.Errorf("write report.md: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "runs.csv"), []byte(reporting.RenderRunsCSV(r)), 0o644); err != nil {
		return fmt.Errorf("write runs.csv: %w", err)
	}
	return nil
}

type stores struct {
	prices    storage.PriceTickStore
	sentiment storage.SentimentStore
	features  storage.FeatureStore
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backends and applies migrations.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	st := &stores{}

	var pool *pgstore.Pool
	if cfg.Storage.Features == config.BackendPostgres || cfg.Storage.Raw == config.BackendPostgres {
		var err error
		pool, err = pgstore.NewPool(ctx, cfg.Postgres.DSN, pgstore.WithMaxConns(cfg.Postgres.MaxConns))
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			st.close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info().Msg("connected to postgres")
	}

	switch cfg.Storage.Features {
	case config.BackendPostgres:
		st.features = pgstore.NewFeatureStore(pool)
	default:
		st.features = memory.NewFeatureStore()
	}

	switch cfg.Storage.Raw {
	case config.BackendPostgres:
		st.prices = pgstore.NewPriceTickStore(pool)
		st.sentiment = pgstore.NewSentimentStore(pool)
	case config.BackendClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN, logger)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.closers = append(st.closers, func() { conn.Close() })
		st.prices = chstore.NewPriceTickStore(conn)
		st.sentiment = chstore.NewSentimentStore(conn)
		logger.Info().Msg("connected to clickhouse")
	default:
		st.prices = memory.NewPriceTickStore()
		st.sentiment = memory.NewSentimentStore()
	}

	return st, nil
}
