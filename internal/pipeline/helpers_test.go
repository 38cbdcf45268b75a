package pipeline

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/features"
	"crptrix-feature-lab/internal/storage/memory"
)

var errInjected = errors.New("injected store failure")

// testEnv bundles memory stores seeded with fixture data.
type testEnv struct {
	prices    *memory.PriceTickStore
	sentiment *memory.SentimentStore
	features  *memory.FeatureStore
}

func newTestEnv(t *testing.T, hours int, symbols ...string) *testEnv {
	t.Helper()

	env := &testEnv{
		prices:    memory.NewPriceTickStore(),
		sentiment: memory.NewSentimentStore(),
		features:  memory.NewFeatureStore(),
	}
	if len(symbols) > 0 {
		require.NoError(t, LoadFixtures(context.Background(), env.prices, env.sentiment, symbols, hours))
	}
	return env
}

func (e *testEnv) runner() *Runner {
	return NewRunner(e.prices, e.sentiment, e.features, zerolog.Nop())
}

// expectedRows computes every candidate row for symbol from the raw stores.
func (e *testEnv) expectedRows(t *testing.T, symbol string) []*domain.FeatureRow {
	t.Helper()
	ctx := context.Background()

	prices, err := e.prices.GetBySymbol(ctx, symbol)
	require.NoError(t, err)
	sentiment, err := e.sentiment.GetBySymbol(ctx, symbol)
	require.NoError(t, err)

	return collect(features.Calculate(prices, sentiment))
}

func collect(seq iter.Seq[*domain.FeatureRow]) []*domain.FeatureRow {
	var out []*domain.FeatureRow
	for row := range seq {
		out = append(out, row)
	}
	return out
}

func seqOf(rows ...*domain.FeatureRow) iter.Seq[*domain.FeatureRow] {
	return func(yield func(*domain.FeatureRow) bool) {
		for _, r := range rows {
			if !yield(r) {
				return
			}
		}
	}
}

func row(symbol string, hour int) *domain.FeatureRow {
	return &domain.FeatureRow{
		Symbol:              symbol,
		TimestampMs:         FixtureStartMs + int64(hour)*domain.TickIntervalMs,
		Return24h:           0.01 * float64(hour),
		Volatility24h:       1,
		VolumeChange24h:     0.1,
		AvgNewsSentiment24h: 0.2,
		SentimentMomentum:   0.3,
		Label:               hour % 2,
	}
}

// failingPriceStore fails every read.
type failingPriceStore struct{ *memory.PriceTickStore }

func (failingPriceStore) GetBySymbol(context.Context, string) ([]*domain.PriceTick, error) {
	return nil, errInjected
}

func (failingPriceStore) Symbols(context.Context) ([]string, error) {
	return nil, errInjected
}

// failingSentimentStore fails every read.
type failingSentimentStore struct{ *memory.SentimentStore }

func (failingSentimentStore) GetBySymbol(context.Context, string) ([]*domain.SentimentObservation, error) {
	return nil, errInjected
}

// faultyFeatureStore wraps a memory store with per-call failures and counts inserts.
type faultyFeatureStore struct {
	*memory.FeatureStore
	failSnapshot bool
	failInsert   bool
	inserts      atomic.Int32
}

func (s *faultyFeatureStore) ExistingTimestamps(ctx context.Context, symbol string) ([]int64, error) {
	if s.failSnapshot {
		return nil, errInjected
	}
	return s.FeatureStore.ExistingTimestamps(ctx, symbol)
}

func (s *faultyFeatureStore) InsertIfAbsent(ctx context.Context, rows []*domain.FeatureRow) (int, error) {
	s.inserts.Add(1)
	if s.failInsert {
		return 0, errInjected
	}
	return s.FeatureStore.InsertIfAbsent(ctx, rows)
}
