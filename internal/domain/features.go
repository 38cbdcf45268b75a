package domain

// FeatureRow is one model-ready row: features describing TimestampMs plus a
// label derived from the label horizon after it.
// Corresponds to features table. Primary key is (symbol, timestamp_ms).
type FeatureRow struct {
	Symbol              string  // asset symbol
	TimestampMs         int64   // reference point the features describe (ms)
	Return24h           float64 // (close[i] - close[i-24]) / close[i-24]
	Volatility24h       float64 // sample stddev of close[i-24:i]
	VolumeChange24h     float64 // (volume[i] - volume[i-24]) / max(volume[i-24], 1)
	AvgNewsSentiment24h float64 // mean score in [t-24h, t]
	SentimentMomentum   float64 // last score - first score in [t-24h, t]
	Label               int     // 1 if future 24-step return > 1%, else 0
}

// Column names of the model contract. The order is fixed and shared by
// feature generation, export and inference.
const (
	ColReturn24h           = "return_24h"
	ColVolatility24h       = "volatility_24h"
	ColVolumeChange24h     = "volume_change_24h"
	ColAvgNewsSentiment24h = "avg_news_sentiment_24h"
	ColSentimentMomentum   = "sentiment_momentum"
	ColLabel               = "label"
)

// FeatureColumns lists the model input columns in contract order.
var FeatureColumns = []string{
	ColReturn24h,
	ColVolatility24h,
	ColVolumeChange24h,
	ColAvgNewsSentiment24h,
	ColSentimentMomentum,
}

// Columns lists every emitted value column: features followed by the label.
var Columns = append(append([]string(nil), FeatureColumns...), ColLabel)

// Vector returns the feature values in FeatureColumns order. The label is
// never part of the vector.
func (r *FeatureRow) Vector() []float64 {
	return []float64{
		r.Return24h,
		r.Volatility24h,
		r.VolumeChange24h,
		r.AvgNewsSentiment24h,
		r.SentimentMomentum,
	}
}

// Values returns the row values in Columns order (label last).
func (r *FeatureRow) Values() []float64 {
	return append(r.Vector(), float64(r.Label))
}
