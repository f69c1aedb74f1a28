package ports

import (
	"context"
	"time"

	"multiStratBot/internal/domain"
)

// TerminalOrder is the raw order request handed to the broker terminal after
// all local validation and volume normalization has been applied.
type TerminalOrder struct {
	Symbol         string
	Direction      domain.OrderDirection // BUY or SELL only; CLOSE is resolved by the client
	Volume         float64
	Price          float64
	StopLoss       *float64
	TakeProfit     *float64
	DeviationPts   int
	Magic          int
	Comment        string
	FillPolicy     domain.FillPolicy
	PositionTicket int64 // non-zero when the order closes an existing position
}

// TerminalOrderResult is the terminal's verdict on a submitted order.
// Rejected is a normal outcome, not an error.
type TerminalOrderResult struct {
	OrderID  int64
	Rejected bool
	Reason   string
}

// TerminalPosition is an open position as reported by the terminal.
type TerminalPosition struct {
	Ticket     int64
	Symbol     string
	Direction  domain.OrderDirection // BUY or SELL
	Volume     float64
	EntryPrice float64
	StopLoss   float64 // 0 means unset
	TakeProfit float64 // 0 means unset
	Magic      int
	Comment    string
	OpenTime   time.Time
}

// DealEntry distinguishes the opening and closing half of a position's deals.
type DealEntry int

const (
	DealEntryIn DealEntry = iota
	DealEntryOut
	DealEntryOther
)

// TerminalDeal is a single execution event from the terminal's history.
type TerminalDeal struct {
	PositionID int64
	Symbol     string
	Entry      DealEntry
	Price      float64
	Volume     float64
	Profit     float64
	Magic      int
	Comment    string
	Time       time.Time
}

// Tick is the current bid/ask quote for a symbol.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// BrokerTerminal is the external broker terminal surface. The resilience
// client depends only on these operations and their documented error returns;
// the terminal itself is not part of this system.
type BrokerTerminal interface {
	// Initialize establishes the terminal session.
	Initialize(ctx context.Context) error
	// Shutdown tears the session down. Safe to call when not initialized.
	Shutdown(ctx context.Context) error
	// Alive reports whether the session currently responds.
	Alive(ctx context.Context) bool
	// SymbolInfo returns trading constraints for a symbol, or ErrUnknownSymbol.
	SymbolInfo(ctx context.Context, symbol string) (domain.SymbolMetadata, error)
	// SelectSymbol makes the symbol visible in the terminal's watch list.
	SelectSymbol(ctx context.Context, symbol string) error
	// SymbolTick returns the current quote for a symbol.
	SymbolTick(ctx context.Context, symbol string) (Tick, error)
	// CopyRatesRange fetches raw bars for [start, end).
	CopyRatesRange(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Kline, error)
	// OrderSend submits one order.
	OrderSend(ctx context.Context, order TerminalOrder) (TerminalOrderResult, error)
	// PositionsGet lists open positions, optionally filtered by symbol ("" = all).
	PositionsGet(ctx context.Context, symbol string) ([]TerminalPosition, error)
	// HistoryDealsGet lists deals executed in [from, to].
	HistoryDealsGet(ctx context.Context, from, to time.Time) ([]TerminalDeal, error)
}

// BrokerClient is the broker-facing surface the engine depends on: connection
// resilience, validation and translation layered over a BrokerTerminal.
type BrokerClient interface {
	// Connect establishes the terminal session with bounded retries.
	Connect(ctx context.Context) error
	// Disconnect shuts the session down.
	Disconnect(ctx context.Context) error
	// State returns the current connection state.
	State() domain.ConnectionState
	// GetOHLCV fetches a validated, close-time-indexed series.
	GetOHLCV(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) (domain.Series, error)
	// SendMarketOrder validates and submits one order request.
	SendMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	// GetOpenPositions returns current open positions (empty, not error, when none).
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
	// GetClosedTrades returns recently closed round trips (trailing 24h window).
	GetClosedTrades(ctx context.Context) ([]domain.TradeRecord, error)
	// GetTick returns the current quote for mark-to-market valuation.
	GetTick(ctx context.Context, symbol string) (Tick, error)
}
