package domain

// PriceTick represents one OHLCV observation for a symbol.
// Corresponds to price_ticks table. Unique per (symbol, timestamp_ms).
type PriceTick struct {
	Symbol      string  // asset symbol, e.g. BTC
	TimestampMs int64   // Unix timestamp in milliseconds
	Open        float64 // open price
	High        float64 // high price
	Low         float64 // low price
	Close       float64 // close price
	Volume      float64 // traded volume in the tick interval
}

// TickIntervalMs is the cadence the index-based windows assume (one tick per hour).
const TickIntervalMs int64 = 60 * 60 * 1000
