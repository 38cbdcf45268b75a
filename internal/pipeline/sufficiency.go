package pipeline

import (
	"context"
	"fmt"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/features"
	"crptrix-feature-lab/internal/storage"
)

// DefaultMinSentimentCoverage is the share of candidate indices that must
// have enough sentiment for the coverage check to pass.
const DefaultMinSentimentCoverage = 0.5

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks for one symbol.
type SufficiencyResult struct {
	Symbol  string
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker reports whether a symbol's raw data can produce
// useful feature rows. It only reads.
type SufficiencyChecker struct {
	prices      storage.PriceTickStore
	sentiment   storage.SentimentStore
	minCoverage float64
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(prices storage.PriceTickStore, sentiment storage.SentimentStore) *SufficiencyChecker {
	return &SufficiencyChecker{
		prices:      prices,
		sentiment:   sentiment,
		minCoverage: DefaultMinSentimentCoverage,
	}
}

// WithMinCoverage overrides the sentiment coverage threshold (0..1).
func (c *SufficiencyChecker) WithMinCoverage(v float64) *SufficiencyChecker {
	c.minCoverage = v
	return c
}

// Check performs all checks for symbol.
func (c *SufficiencyChecker) Check(ctx context.Context, symbol string) (*SufficiencyResult, error) {
	prices, err := c.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get price ticks: %w", err)
	}
	sentiment, err := c.sentiment.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get sentiment: %w", err)
	}

	result := &SufficiencyResult{
		Symbol:  symbol,
		Checks:  make([]SufficiencyCheck, 0, 5),
		AllPass: true,
		Errors:  []string{},
	}
	add := func(check SufficiencyCheck, integrityErr string) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
		if integrityErr != "" {
			result.Errors = append(result.Errors, integrityErr)
		}
	}

	// Check 1: enough ticks for at least one candidate
	add(checkHistoryLength(prices), "")

	// Check 2: no duplicate tick timestamps
	add(checkDuplicateTicks(prices))

	// Check 3: hourly cadence
	add(checkCadence(prices), "")

	// Check 4: sentiment scores in range
	add(checkScores(sentiment))

	// Check 5: sentiment coverage of candidate indices
	add(checkCoverage(prices, sentiment, c.minCoverage), "")

	return result, nil
}

func checkHistoryLength(prices []*domain.PriceTick) SufficiencyCheck {
	return SufficiencyCheck{
		Name:      "Price history length",
		Threshold: fmt.Sprintf(">= %d ticks", features.MinTicks),
		Actual:    fmt.Sprintf("%d ticks", len(prices)),
		Pass:      len(prices) >= features.MinTicks,
	}
}

func checkDuplicateTicks(prices []*domain.PriceTick) (SufficiencyCheck, string) {
	seen := make(map[int64]struct{}, len(prices))
	dups := 0
	for _, p := range prices {
		if _, ok := seen[p.TimestampMs]; ok {
			dups++
			continue
		}
		seen[p.TimestampMs] = struct{}{}
	}

	check := SufficiencyCheck{
		Name:      "Duplicate tick timestamps",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", dups),
		Pass:      dups == 0,
	}
	if dups > 0 {
		return check, fmt.Sprintf("%d duplicate price tick timestamps", dups)
	}
	return check, ""
}

func checkCadence(prices []*domain.PriceTick) SufficiencyCheck {
	report := features.CheckCadence(prices)
	return SufficiencyCheck{
		Name:      "Hourly cadence",
		Threshold: "0 irregular gaps",
		Actual:    fmt.Sprintf("%d irregular gaps", report.Gaps),
		Pass:      report.Aligned(),
	}
}

func checkScores(sentiment []*domain.SentimentObservation) (SufficiencyCheck, string) {
	invalid := 0
	for _, o := range sentiment {
		if !o.ValidScore() {
			invalid++
		}
	}

	check := SufficiencyCheck{
		Name:      "Sentiment scores in [-1, 1]",
		Threshold: "== 0 invalid",
		Actual:    fmt.Sprintf("%d invalid", invalid),
		Pass:      invalid == 0,
	}
	if invalid > 0 {
		return check, fmt.Sprintf("%d sentiment scores outside [-1, 1]", invalid)
	}
	return check, ""
}

func checkCoverage(prices []*domain.PriceTick, sentiment []*domain.SentimentObservation, minCoverage float64) SufficiencyCheck {
	total := features.CandidateCount(len(prices))
	threshold := fmt.Sprintf(">= %.0f%% of %d candidate indices", minCoverage*100, total)
	if total == 0 {
		return SufficiencyCheck{
			Name:      "Sentiment coverage",
			Threshold: threshold,
			Actual:    "no candidate indices",
			Pass:      false,
		}
	}

	covered := 0
	for i := features.Window; i < len(prices)-features.LabelHorizon; i++ {
		if len(features.SentimentWindow(sentiment, prices[i].TimestampMs)) >= features.MinSentimentObservations {
			covered++
		}
	}
	ratio := float64(covered) / float64(total)

	return SufficiencyCheck{
		Name:      "Sentiment coverage",
		Threshold: threshold,
		Actual:    fmt.Sprintf("%.1f%% (%d/%d)", ratio*100, covered, total),
		Pass:      ratio >= minCoverage,
	}
}
