package features

import (
	"iter"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"crptrix-feature-lab/internal/domain"
)

// Option configures Calculate.
type Option func(*options)

type options struct {
	skip map[int64]struct{}
}

// SkipTimestamps makes Calculate skip indices whose timestamp is in the set
// before computing anything for them.
func SkipTimestamps(timestamps map[int64]struct{}) Option {
	return func(o *options) {
		o.skip = timestamps
	}
}

// Calculate returns a lazy sequence of candidate feature rows for one symbol.
// Inputs are copied and sorted internally; the caller's slices are not modified.
// Ranging over the result again recomputes every row from scratch.
//
// For each index i in [Window, len(prices)-LabelHorizon):
//   - return_24h = (close[i] - close[i-24]) / close[i-24]
//   - volatility_24h = sample stddev of close[i-24:i]
//   - volume_change_24h = (volume[i] - volume[i-24]) / max(volume[i-24], 1)
//   - avg_news_sentiment_24h = mean score in [t-24h, t]
//   - sentiment_momentum = last score - first score in [t-24h, t]
//   - label = LabelAt(prices, i)
//
// Indices with fewer than MinSentimentObservations in the sentiment window,
// a zero base close, or a zero current close are skipped.
func Calculate(
	prices []*domain.PriceTick,
	sentiment []*domain.SentimentObservation,
	opts ...Option,
) iter.Seq[*domain.FeatureRow] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sortedPrices := sortPrices(prices)
	sortedSentiment := sortSentiment(sentiment)

	return func(yield func(*domain.FeatureRow) bool) {
		for i := Window; i < len(sortedPrices)-LabelHorizon; i++ {
			if _, skip := o.skip[sortedPrices[i].TimestampMs]; skip {
				continue
			}

			row, ok := computeRow(sortedPrices, sortedSentiment, i)
			if !ok {
				continue
			}

			if !yield(row) {
				return
			}
		}
	}
}

// computeRow builds the feature row for index i. Feature columns read ticks
// in [i-Window, i] only; the label reads ticks at i and i+LabelHorizon.
func computeRow(
	prices []*domain.PriceTick,
	sentiment []*domain.SentimentObservation,
	i int,
) (*domain.FeatureRow, bool) {
	now := prices[i]
	base := prices[i-Window]

	if base.Close == 0 {
		return nil, false
	}

	window := SentimentWindow(sentiment, now.TimestampMs)
	if len(window) < MinSentimentObservations {
		return nil, false
	}

	label, ok := LabelAt(prices, i)
	if !ok {
		return nil, false
	}

	closes := make([]float64, Window)
	for k := 0; k < Window; k++ {
		closes[k] = prices[i-Window+k].Close
	}

	scores := make([]float64, len(window))
	for k, obs := range window {
		scores[k] = obs.Score
	}

	return &domain.FeatureRow{
		Symbol:              now.Symbol,
		TimestampMs:         now.TimestampMs,
		Return24h:           (now.Close - base.Close) / base.Close,
		Volatility24h:       stat.StdDev(closes, nil),
		VolumeChange24h:     (now.Volume - base.Volume) / math.Max(base.Volume, 1),
		AvgNewsSentiment24h: stat.Mean(scores, nil),
		SentimentMomentum:   scores[len(scores)-1] - scores[0],
		Label:               label.Value,
	}, true
}

// SentimentWindow returns the observations with timestamp in the closed
// interval [ts - SentimentWindowMs, ts]. Input must be ordered by timestamp.
func SentimentWindow(sentiment []*domain.SentimentObservation, ts int64) []*domain.SentimentObservation {
	from := ts - SentimentWindowMs

	lo := sort.Search(len(sentiment), func(k int) bool {
		return sentiment[k].TimestampMs >= from
	})
	hi := sort.Search(len(sentiment), func(k int) bool {
		return sentiment[k].TimestampMs > ts
	})

	return sentiment[lo:hi]
}

// sortPrices returns a copy of prices ordered by timestamp ASC.
func sortPrices(prices []*domain.PriceTick) []*domain.PriceTick {
	sorted := make([]*domain.PriceTick, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].TimestampMs < sorted[b].TimestampMs
	})
	return sorted
}

// sortSentiment returns a copy ordered by (timestamp ASC, id ASC). Equal keys
// keep input order, so momentum is deterministic for identical input.
func sortSentiment(sentiment []*domain.SentimentObservation) []*domain.SentimentObservation {
	sorted := make([]*domain.SentimentObservation, len(sentiment))
	copy(sorted, sentiment)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].TimestampMs != sorted[b].TimestampMs {
			return sorted[a].TimestampMs < sorted[b].TimestampMs
		}
		return sorted[a].ID < sorted[b].ID
	})
	return sorted
}
