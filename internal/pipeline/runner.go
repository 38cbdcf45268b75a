package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/features"
	"crptrix-feature-lab/internal/observability"
	"crptrix-feature-lab/internal/storage"
)

// RunResult summarizes one per-symbol run.
type RunResult struct {
	Symbol       string
	Ticks        int                    // price ticks loaded
	Observations int                    // sentiment observations loaded
	Existing     int                    // timestamps already materialized before the run
	Skipped      int                    // candidate indices skipped because they were materialized
	Write        *WriteResult           // writer counts
	Cadence      features.CadenceReport // spacing report of the loaded ticks
	Duration     time.Duration
}

// Runner drives the per-symbol feature run: load raw data, snapshot what
// already exists, compute candidates lazily and hand them to the Writer.
type Runner struct {
	prices    storage.PriceTickStore
	sentiment storage.SentimentStore
	features  storage.FeatureStore
	writer    *Writer
	logger    zerolog.Logger
	metrics   *observability.Metrics
	clock     func() time.Time

	// Same-symbol runs are serialized within the process.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewRunner creates a new Runner.
func NewRunner(
	prices storage.PriceTickStore,
	sentiment storage.SentimentStore,
	featureStore storage.FeatureStore,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		prices:    prices,
		sentiment: sentiment,
		features:  featureStore,
		writer:    NewWriter(featureStore, logger),
		logger:    logger.With().Str("component", "runner").Logger(),
		clock:     time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// WithMetrics records run and store metrics on m.
func (r *Runner) WithMetrics(m *observability.Metrics) *Runner {
	r.metrics = m
	r.writer.WithMetrics(m)
	return r
}

// WithClock sets a custom clock function for deterministic durations.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// RunSymbol performs one incremental run for symbol. Any store error aborts
// the run; nothing is written unless the final insert commits.
func (r *Runner) RunSymbol(ctx context.Context, symbol string) (*RunResult, error) {
	lock := r.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	start := r.clock()
	result, err := r.runSymbol(ctx, symbol)
	elapsed := r.clock().Sub(start)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailure
	}
	r.metrics.RecordRun(symbol, status, elapsed.Seconds(), float64(r.clock().Unix()))

	if err != nil {
		r.logger.Error().Err(err).Str("symbol", symbol).Msg("feature run failed")
		return nil, err
	}
	result.Duration = elapsed

	r.metrics.RecordWrite(symbol, result.Write.Candidates, result.Skipped+result.Write.Skipped,
		result.Write.Inserted, result.Write.Conflicts)

	r.logger.Info().
		Str("symbol", symbol).
		Int("ticks", result.Ticks).
		Int("observations", result.Observations).
		Int("existing", result.Existing).
		Int("skipped", result.Skipped).
		Int("candidates", result.Write.Candidates).
		Int("inserted", result.Write.Inserted).
		Int("conflicts", result.Write.Conflicts).
		Dur("duration", elapsed).
		Msg("feature run complete")

	return result, nil
}

func (r *Runner) runSymbol(ctx context.Context, symbol string) (*RunResult, error) {
	// 1. Load prices
	prices, err := timed(r, "price_ticks", "get_by_symbol", func() ([]*domain.PriceTick, error) {
		return r.prices.GetBySymbol(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("load prices for %s: %w", symbol, err)
	}

	// 2. Load sentiment
	sentiment, err := timed(r, "news_sentiment", "get_by_symbol", func() ([]*domain.SentimentObservation, error) {
		return r.sentiment.GetBySymbol(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("load sentiment for %s: %w", symbol, err)
	}

	result := &RunResult{
		Symbol:       symbol,
		Ticks:        len(prices),
		Observations: len(sentiment),
		Cadence:      features.CheckCadence(prices),
	}

	if !result.Cadence.Aligned() {
		r.logger.Warn().
			Str("symbol", symbol).
			Int("gaps", result.Cadence.Gaps).
			Int64("min_spacing_ms", result.Cadence.MinSpacing).
			Int64("max_spacing_ms", result.Cadence.MaxSpacing).
			Msg("price ticks are not hourly; windows stay index-based")
		r.metrics.RecordCadenceGaps(symbol, result.Cadence.Gaps)
	}

	// 3. Snapshot existing timestamps, taken once per run
	existingTimestamps, err := timed(r, "features", "existing_timestamps", func() ([]int64, error) {
		return r.features.ExistingTimestamps(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot feature timestamps for %s: %w", symbol, err)
	}
	existing := make(map[int64]struct{}, len(existingTimestamps))
	for _, ts := range existingTimestamps {
		existing[ts] = struct{}{}
	}
	result.Existing = len(existing)
	result.Skipped = skippedInRange(prices, existing)

	// 4. Build candidates lazily, skipping materialized timestamps up front
	candidates := features.Calculate(prices, sentiment, features.SkipTimestamps(existing))

	// 5. Write
	write, err := r.writer.Write(ctx, symbol, candidates, existing)
	if err != nil {
		return nil, fmt.Errorf("write features for %s: %w", symbol, err)
	}
	result.Write = write

	return result, nil
}

// RunSymbols runs each distinct symbol once, at most parallelism at a time
// (parallelism <= 0 means unbounded). The first failure cancels the rest.
// Results are returned in first-seen order of symbols.
func (r *Runner) RunSymbols(ctx context.Context, symbols []string, parallelism int) ([]*RunResult, error) {
	unique := dedupe(symbols)
	results := make([]*RunResult, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, symbol := range unique {
		g.Go(func() error {
			res, err := r.RunSymbol(gctx, symbol)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Symbols lists every symbol that has price ticks.
func (r *Runner) Symbols(ctx context.Context) ([]string, error) {
	symbols, err := timed(r, "price_ticks", "symbols", func() ([]string, error) {
		return r.prices.Symbols(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return symbols, nil
}

// RunAll runs every symbol that has price ticks.
func (r *Runner) RunAll(ctx context.Context, parallelism int) ([]*RunResult, error) {
	symbols, err := r.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		r.logger.Warn().Msg("no symbols with price ticks")
		return nil, nil
	}

	return r.RunSymbols(ctx, symbols, parallelism)
}

func (r *Runner) symbolLock(symbol string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[symbol] = lock
	}
	return lock
}

// timed runs fn and records its duration and failure under store/operation.
func timed[T any](r *Runner, store, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	r.metrics.RecordDBQuery(store, operation, time.Since(start).Seconds(), err)
	return v, err
}

// skippedInRange counts candidate indices of the ascending prices whose
// timestamp is already in existing.
func skippedInRange(prices []*domain.PriceTick, existing map[int64]struct{}) int {
	if len(existing) == 0 || features.CandidateCount(len(prices)) == 0 {
		return 0
	}
	n := 0
	for _, p := range prices[features.Window : len(prices)-features.LabelHorizon] {
		if _, ok := existing[p.TimestampMs]; ok {
			n++
		}
	}
	return n
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
