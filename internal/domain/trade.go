package domain

import (
	"fmt"
	"time"
)

// TradeRecord is a completed round trip built by pairing the opening and
// closing deal of the same position. A deal with only one side observed never
// becomes a TradeRecord.
type TradeRecord struct {
	Symbol       string
	StrategyName string
	EntryTime    time.Time
	ExitTime     time.Time
	EntryPrice   float64
	ExitPrice    float64
	Size         float64
	PnL          float64
	StopLoss     *float64
	TakeProfit   *float64
}

// Key identifies a trade for idempotent ledger accounting: the same closed
// trade observed across cycles must contribute to drawdown exactly once.
func (t TradeRecord) Key() string {
	return fmt.Sprintf("%d|%s|%s", t.EntryTime.UnixNano(), t.Symbol, t.StrategyName)
}
