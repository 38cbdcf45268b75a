package verification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/features"
	"crptrix-feature-lab/internal/observability"
	"crptrix-feature-lab/internal/storage"
)

// RecomputeVerifier implements Verifier against the raw and feature stores.
type RecomputeVerifier struct {
	prices    storage.PriceTickStore
	sentiment storage.SentimentStore
	features  storage.FeatureStore
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewRecomputeVerifier creates a new RecomputeVerifier.
func NewRecomputeVerifier(
	prices storage.PriceTickStore,
	sentiment storage.SentimentStore,
	featureStore storage.FeatureStore,
	logger zerolog.Logger,
) *RecomputeVerifier {
	return &RecomputeVerifier{
		prices:    prices,
		sentiment: sentiment,
		features:  featureStore,
		logger:    logger.With().Str("component", "verifier").Logger(),
	}
}

// WithMetrics counts divergent rows on m.
func (v *RecomputeVerifier) WithMetrics(m *observability.Metrics) *RecomputeVerifier {
	v.metrics = m
	return v
}

// Compile-time interface check.
var _ Verifier = (*RecomputeVerifier)(nil)

// VerifySymbol recomputes all candidate rows without skipping and compares
// them with the stored rows by timestamp.
func (v *RecomputeVerifier) VerifySymbol(ctx context.Context, symbol string) (*Report, error) {
	// 1. Load raw data and stored rows
	prices, err := v.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load prices for %s: %w", symbol, err)
	}
	sentiment, err := v.sentiment.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load sentiment for %s: %w", symbol, err)
	}
	stored, err := v.features.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load features for %s: %w", symbol, err)
	}

	// 2. Recompute
	recomputed := make(map[int64]*domain.FeatureRow)
	for row := range features.Calculate(prices, sentiment) {
		recomputed[row.TimestampMs] = row
	}

	// 3. Compare
	report := &Report{
		Symbol:     symbol,
		Stored:     len(stored),
		Recomputed: len(recomputed),
	}
	seen := make(map[int64]struct{}, len(stored))
	for _, s := range stored {
		seen[s.TimestampMs] = struct{}{}

		fresh, ok := recomputed[s.TimestampMs]
		if !ok {
			report.Orphaned++
			continue
		}

		divergences := CompareFeatureRows(s, fresh)
		if len(divergences) == 0 {
			report.Matched++
			continue
		}
		report.Divergent++
		report.Results = append(report.Results, RowResult{
			TimestampMs: s.TimestampMs,
			Divergences: divergences,
		})
	}
	for ts := range recomputed {
		if _, ok := seen[ts]; !ok {
			report.Missing++
		}
	}

	v.metrics.RecordDivergences(symbol, report.Divergent)

	event := v.logger.Info()
	if !report.OK() {
		event = v.logger.Warn()
	}
	event.
		Str("symbol", symbol).
		Int("stored", report.Stored).
		Int("matched", report.Matched).
		Int("divergent", report.Divergent).
		Int("missing", report.Missing).
		Int("orphaned", report.Orphaned).
		Msg("verification complete")

	return report, nil
}

// VerifyAll verifies each symbol in order and stops at the first store error.
func (v *RecomputeVerifier) VerifyAll(ctx context.Context, symbols []string) ([]*Report, error) {
	reports := make([]*Report, 0, len(symbols))
	for _, symbol := range symbols {
		report, err := v.VerifySymbol(ctx, symbol)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
