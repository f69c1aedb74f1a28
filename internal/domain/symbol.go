package domain

// SymbolMetadata holds the broker's trading constraints for one symbol.
// Cached by the broker client with a 60 second TTL.
type SymbolMetadata struct {
	MinVolume   float64
	MaxVolume   float64
	VolumeStep  float64
	Spread      int
	Visible     bool
	FillModes   int // bitmask of supported filling modes (bit 0 FOK, bit 1 IOC, bit 2 Return)
}

// PreferredFillPolicy picks a fill policy from the supported bitmask with
// FOK > IOC > Return priority, defaulting to FOK when nothing is advertised.
func (m SymbolMetadata) PreferredFillPolicy() FillPolicy {
	switch {
	case m.FillModes&1 != 0:
		return FillOrKill
	case m.FillModes&2 != 0:
		return ImmediateOrCancel
	case m.FillModes&4 != 0:
		return FillReturn
	default:
		return FillOrKill
	}
}

// SymbolConfig is the configuration of one tradable symbol.
type SymbolConfig struct {
	Name          string
	BaseTimeframe Timeframe // finest timeframe fetched from the terminal
	LotSize       float64   // default order volume for this symbol
}

// StrategyConfig binds a strategy to the symbol and timeframe it evaluates.
type StrategyConfig struct {
	Name      string
	Kind      string // registered strategy implementation to dispatch to
	Symbol    string
	Timeframe Timeframe
	Params    map[string]float64
}
