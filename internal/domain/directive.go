package domain

// DirectiveKind enumerates the decisions a strategy can produce for one
// evaluation.
type DirectiveKind int

const (
	// DirectiveNone means the strategy has nothing to do this cycle.
	DirectiveNone DirectiveKind = iota
	// DirectiveEnter opens a new position in the given direction.
	DirectiveEnter
	// DirectiveExitAll closes the strategy's open exposure on the symbol.
	DirectiveExitAll
)

// String returns the string representation of the DirectiveKind.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveNone:
		return "none"
	case DirectiveEnter:
		return "enter"
	case DirectiveExitAll:
		return "exit_all"
	default:
		return "unknown"
	}
}

// Directive is a strategy's normalized output decision prior to risk gating.
// Symbol, StrategyName, Timeframe and Magic are stamped by the strategy
// runner, not by the strategy itself.
type Directive struct {
	Kind         DirectiveKind
	Direction    OrderDirection // BUY or SELL for Enter directives
	Volume       float64
	StopLoss     *float64
	TakeProfit   *float64
	Symbol       string
	StrategyName string
	Timeframe    Timeframe
	Magic        int
}
