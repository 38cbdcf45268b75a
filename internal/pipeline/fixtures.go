package pipeline

import (
	"context"
	"fmt"
	"math"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

// FixtureStartMs is the first fixture tick (2024-01-01 00:00:00 UTC).
const FixtureStartMs int64 = 1704067200000

// FixtureSymbols are the symbols seeded in demo mode.
var FixtureSymbols = []string{"BTC", "ETH", "SOL"}

// fixtureBase is the starting close per symbol; unknown symbols use 100.
var fixtureBase = map[string]float64{
	"BTC": 42000,
	"ETH": 2300,
	"SOL": 100,
}

// FixtureTicks generates hours deterministic hourly ticks for symbol.
// Closes oscillate around a slow drift so labels of both classes occur.
func FixtureTicks(symbol string, hours int) []*domain.PriceTick {
	base, ok := fixtureBase[symbol]
	if !ok {
		base = 100
	}

	ticks := make([]*domain.PriceTick, 0, hours)
	prev := base
	for i := 0; i < hours; i++ {
		x := float64(i)
		closePrice := base * (1 + 0.03*math.Sin(x/9) + 0.0004*x)
		volume := 1000 + 400*math.Cos(x/5) + 10*x
		ticks = append(ticks, &domain.PriceTick{
			Symbol:      symbol,
			TimestampMs: FixtureStartMs + int64(i)*domain.TickIntervalMs,
			Open:        prev,
			High:        math.Max(prev, closePrice) * 1.002,
			Low:         math.Min(prev, closePrice) * 0.998,
			Close:       closePrice,
			Volume:      volume,
		})
		prev = closePrice
	}
	return ticks
}

// FixtureSentiment generates deterministic observations for symbol: two per
// tick on even hours and none on odd hours, scores within [-1, 1].
func FixtureSentiment(symbol string, hours int) []*domain.SentimentObservation {
	sources := []string{"newswire", "forum"}

	obs := make([]*domain.SentimentObservation, 0, hours)
	for i := 0; i < hours; i += 2 {
		for k, source := range sources {
			x := float64(i + k)
			obs = append(obs, &domain.SentimentObservation{
				Symbol:      symbol,
				TimestampMs: FixtureStartMs + int64(i)*domain.TickIntervalMs + int64(k)*60_000,
				Score:       0.8 * math.Sin(x/7),
				Source:      source,
			})
		}
	}
	return obs
}

// LoadFixtures populates the raw stores with hours of data per symbol.
func LoadFixtures(
	ctx context.Context,
	priceStore storage.PriceTickStore,
	sentimentStore storage.SentimentStore,
	symbols []string,
	hours int,
) error {
	for _, symbol := range symbols {
		if err := priceStore.InsertBulk(ctx, FixtureTicks(symbol, hours)); err != nil {
			return fmt.Errorf("load price fixtures for %s: %w", symbol, err)
		}
		if err := sentimentStore.InsertBulk(ctx, FixtureSentiment(symbol, hours)); err != nil {
			return fmt.Errorf("load sentiment fixtures for %s: %w", symbol, err)
		}
	}
	return nil
}
