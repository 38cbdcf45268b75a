package features

import "crptrix-feature-lab/internal/domain"

// Label is the forward-looking target for a price index.
type Label struct {
	FutureReturn24h float64 // (close[i+24] - close[i]) / close[i]
	Value           int     // 1 if FutureReturn24h > LabelThreshold, else 0
}

// LabelAt computes the label for index i of a timestamp-ordered price sequence.
// Only ticks at index >= i are read.
// Returns false if i+LabelHorizon is out of range or close[i] is zero.
func LabelAt(prices []*domain.PriceTick, i int) (Label, bool) {
	if i < 0 || i+LabelHorizon >= len(prices) {
		return Label{}, false
	}

	current := prices[i].Close
	if current == 0 {
		return Label{}, false
	}

	futureReturn := (prices[i+LabelHorizon].Close - current) / current

	label := Label{FutureReturn24h: futureReturn}
	if futureReturn > LabelThreshold {
		label.Value = 1
	}
	return label, true
}
