package domain

// OrderRequest is a market order to be submitted to the broker. Treated as
// immutable once constructed: built by the strategy runner, consumed by the
// broker client.
type OrderRequest struct {
	Symbol     string
	Direction  OrderDirection
	Volume     float64
	StopLoss   *float64
	TakeProfit *float64
	Comment    string
	Magic      int // identifies the owning strategy at the broker
}

// OrderResult is the outcome of exactly one submitted OrderRequest. OrderID
// is meaningful only when Success is true; ErrorMessage only when it is false.
type OrderResult struct {
	Success      bool
	OrderID      int64
	ErrorMessage string
}
