package domain

// SentimentObservation is a news-derived sentiment score for a symbol.
// Corresponds to news_sentiment table. Not unique-keyed: several sources
// may report at the same timestamp.
type SentimentObservation struct {
	ID          int64   // ingestion sequence, assigned by the store
	Symbol      string  // asset symbol
	TimestampMs int64   // Unix timestamp in milliseconds
	Score       float64 // sentiment score in [-1, 1]
	Source      string  // news source name
}

// Sentiment score bounds.
const (
	MinSentimentScore = -1.0
	MaxSentimentScore = 1.0
)

// ValidScore reports whether the score lies within [-1, 1].
func (o *SentimentObservation) ValidScore() bool {
	return o.Score >= MinSentimentScore && o.Score <= MaxSentimentScore
}
