package domain

// OrderDirection represents the direction of an order request.
type OrderDirection string

const (
	Buy   OrderDirection = "BUY"
	Sell  OrderDirection = "SELL"
	Close OrderDirection = "CLOSE"
)

// IsValid reports whether the direction is one of the accepted values.
func (d OrderDirection) IsValid() bool {
	switch d {
	case Buy, Sell, Close:
		return true
	}
	return false
}

// ConnectionState represents the broker client's connection lifecycle state.
// Owned exclusively by the broker resilience client.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
	Reconnecting
)

// String returns the string representation of the ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// FillPolicy is the order filling mode requested from the broker terminal.
type FillPolicy int

const (
	FillOrKill FillPolicy = iota
	ImmediateOrCancel
	FillReturn
)
