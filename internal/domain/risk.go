package domain

// RiskLimits holds the maximum drawdown allowed at each scope, expressed as a
// percentage loss from the reference baseline equity. A nil/absent limit
// means the scope is unbounded. Immutable for the process lifetime.
type RiskLimits struct {
	GlobalMaxDrawdownPct      *float64
	PerAssetMaxDrawdownPct    map[string]float64
	PerStrategyMaxDrawdownPct map[string]float64
	InitialBalance            float64 // reference equity baseline for drawdown accounting
}
