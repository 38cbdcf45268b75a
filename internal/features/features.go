// Package features derives model-ready feature rows from price ticks and
// sentiment observations. Everything here is a pure computation over its
// inputs; persistence lives in the pipeline package.
package features

// Window and label constants of the model contract. They are fixed and not
// configurable per call.
const (
	// Window is the trailing window length in price ticks.
	Window = 24

	// LabelHorizon is the number of ticks ahead used for the label.
	LabelHorizon = 24

	// LabelThreshold is the future return above which a row is labeled 1.
	LabelThreshold = 0.01

	// SentimentWindowMs is the wall-clock sentiment lookback (24h).
	SentimentWindowMs int64 = 24 * 60 * 60 * 1000

	// MinSentimentObservations is the minimum number of observations
	// required in the sentiment window.
	MinSentimentObservations = 2
)

// MinTicks is the shortest price sequence that yields a candidate index.
const MinTicks = Window + LabelHorizon + 1

// CandidateCount returns the size of the valid index range [Window, n-LabelHorizon)
// for a price sequence of length n.
func CandidateCount(n int) int {
	if n < MinTicks {
		return 0
	}
	return n - Window - LabelHorizon
}
