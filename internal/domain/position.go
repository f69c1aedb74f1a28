package domain

import "time"

// Position is a read-only snapshot of a position reported open by the broker.
// StrategyName is derived from the order comment ("<strategy>-<timeframe>"),
// falling back to "Unknown" when the comment is missing.
type Position struct {
	Symbol       string
	Direction    OrderDirection // BUY or SELL
	Volume       float64
	EntryPrice   float64
	StopLoss     *float64
	TakeProfit   *float64
	StrategyName string
	OpenTime     time.Time
	Magic        int
}
