package verification

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/pipeline"
	"crptrix-feature-lab/internal/storage/memory"
)

func sampleRow() *domain.FeatureRow {
	return &domain.FeatureRow{
		Symbol:              "BTC",
		TimestampMs:         1704153600000,
		Return24h:           0.0123,
		Volatility24h:       1.5,
		VolumeChange24h:     -0.2,
		AvgNewsSentiment24h: 0.31,
		SentimentMomentum:   -0.05,
		Label:               1,
	}
}

func TestCompareFeatureRows_ExactMatch(t *testing.T) {
	a, b := sampleRow(), sampleRow()

	if divergences := CompareFeatureRows(a, b); len(divergences) != 0 {
		t.Errorf("Expected 0 divergences, got %d: %v", len(divergences), divergences)
	}
}

func TestCompareFeatureRows_WithinTolerance(t *testing.T) {
	a, b := sampleRow(), sampleRow()
	b.Volatility24h += FloatTolerance / 2

	if divergences := CompareFeatureRows(a, b); len(divergences) != 0 {
		t.Errorf("Expected 0 divergences within tolerance, got %v", divergences)
	}
}

func TestCompareFeatureRows_Divergences(t *testing.T) {
	a, b := sampleRow(), sampleRow()
	b.Return24h = 0.5
	b.Label = 0

	divergences := CompareFeatureRows(a, b)
	if len(divergences) != 2 {
		t.Fatalf("Expected 2 divergences, got %d: %v", len(divergences), divergences)
	}
	if divergences[0].Field != domain.ColReturn24h {
		t.Errorf("Expected first divergence on %s, got %s", domain.ColReturn24h, divergences[0].Field)
	}
	if divergences[1].Field != domain.ColLabel {
		t.Errorf("Expected second divergence on %s, got %s", domain.ColLabel, divergences[1].Field)
	}
}

func TestFloatEquals(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{1.0, 1.0, true},
		{1.0, 1.0 + 1e-10, true},
		{1.0, 1.0 + 1e-8, false},
		{math.NaN(), math.NaN(), false},
	}

	for _, tt := range tests {
		if got := floatEquals(tt.a, tt.b); got != tt.want {
			t.Errorf("floatEquals(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func setupStores(t *testing.T, hours int) (*memory.PriceTickStore, *memory.SentimentStore, *memory.FeatureStore) {
	t.Helper()
	prices := memory.NewPriceTickStore()
	sentiment := memory.NewSentimentStore()
	if err := pipeline.LoadFixtures(context.Background(), prices, sentiment, []string{"BTC"}, hours); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	return prices, sentiment, memory.NewFeatureStore()
}

func TestRecomputeVerifier_AllMatchAfterRun(t *testing.T) {
	ctx := context.Background()
	prices, sentiment, featureStore := setupStores(t, 80)

	runner := pipeline.NewRunner(prices, sentiment, featureStore, zerolog.Nop())
	if _, err := runner.RunSymbol(ctx, "BTC"); err != nil {
		t.Fatalf("RunSymbol failed: %v", err)
	}

	report, err := NewRecomputeVerifier(prices, sentiment, featureStore, zerolog.Nop()).VerifySymbol(ctx, "BTC")
	if err != nil {
		t.Fatalf("VerifySymbol failed: %v", err)
	}

	if !report.OK() {
		t.Errorf("Expected clean report, got %+v", report)
	}
	if report.Matched != 32 || report.Stored != 32 {
		t.Errorf("Expected 32 matched of 32 stored, got %d of %d", report.Matched, report.Stored)
	}
}

func TestRecomputeVerifier_DetectsDriftMissingAndOrphans(t *testing.T) {
	ctx := context.Background()
	prices, sentiment, featureStore := setupStores(t, 80)

	runner := pipeline.NewRunner(prices, sentiment, featureStore, zerolog.Nop())
	if _, err := runner.RunSymbol(ctx, "BTC"); err != nil {
		t.Fatalf("RunSymbol failed: %v", err)
	}

	// New raw data arrives for the latest tick window: a late strongly
	// negative observation changes sentiment for rows already stored.
	last, err := featureStore.GetLatest(ctx, "BTC")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	err = sentiment.InsertBulk(ctx, []*domain.SentimentObservation{
		{Symbol: "BTC", TimestampMs: last.TimestampMs, Score: -1, Source: "late"},
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// An orphan row the raw data cannot produce.
	orphan := sampleRow()
	orphan.TimestampMs = 1
	if _, err := featureStore.InsertIfAbsent(ctx, []*domain.FeatureRow{orphan}); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}

	// One more tick makes one more index computable; it is not stored.
	extra := pipeline.FixtureTicks("BTC", 81)[80:]
	if err := prices.InsertBulk(ctx, extra); err != nil {
		t.Fatalf("InsertBulk ticks failed: %v", err)
	}

	report, err := NewRecomputeVerifier(prices, sentiment, featureStore, zerolog.Nop()).VerifySymbol(ctx, "BTC")
	if err != nil {
		t.Fatalf("VerifySymbol failed: %v", err)
	}

	if report.Divergent == 0 {
		t.Errorf("Expected divergent rows after late sentiment, got %+v", report)
	}
	if report.Missing != 1 {
		t.Errorf("Expected 1 missing row, got %d", report.Missing)
	}
	if report.Orphaned != 1 {
		t.Errorf("Expected 1 orphaned row, got %d", report.Orphaned)
	}
	if report.OK() {
		t.Error("Expected report to be not OK")
	}

	// Verification never writes.
	if n := featureStore.Count("BTC"); n != 33 {
		t.Errorf("Expected 33 stored rows, got %d", n)
	}
}
