package risk

import (
	"context"
	"fmt"
	"sync"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

const defaultInitialBalance = 10000

// scopeLedger tracks equity for one drawdown scope. Realized PnL accumulates
// from closed trades, unrealized is recomputed from open positions each
// update, and peak only ever rises.
type scopeLedger struct {
	realized   float64
	unrealized float64
	peak       float64
}

func (l *scopeLedger) equity(baseline float64) float64 {
	return baseline + l.realized + l.unrealized
}

func (l *scopeLedger) drawdownPct(baseline float64) float64 {
	eq := l.equity(baseline)
	if eq > l.peak {
		return 0
	}
	if l.peak <= 0 {
		return 0
	}
	return (l.peak - eq) / l.peak * 100
}

// Decision is the gate's verdict on a single directive.
type Decision struct {
	Admitted bool
	Reason   string // set when not admitted; names the violated scope
}

// Gate admits or denies trade directives based on drawdown ledgers kept at
// three scopes: the whole account, each traded asset, and each strategy.
// Exits are never denied; a bleeding position must always be closable.
type Gate struct {
	limits domain.RiskLimits
	logger ports.Logger

	mu         sync.Mutex
	applied    map[string]struct{}
	global     *scopeLedger
	byAsset    map[string]*scopeLedger
	byStrategy map[string]*scopeLedger
}

// Config holds configuration for the risk gate.
type Config struct {
	Limits domain.RiskLimits
	Logger ports.Logger
}

// New creates a risk gate. A zero InitialBalance falls back to the default
// reference baseline.
func New(cfg Config) (*Gate, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for risk gate: %w", ports.ErrConfigurationError)
	}
	if cfg.Limits.InitialBalance <= 0 {
		cfg.Limits.InitialBalance = defaultInitialBalance
	}
	bal := cfg.Limits.InitialBalance
	return &Gate{
		limits:     cfg.Limits,
		logger:     cfg.Logger,
		applied:    make(map[string]struct{}),
		global:     &scopeLedger{peak: bal},
		byAsset:    make(map[string]*scopeLedger),
		byStrategy: make(map[string]*scopeLedger),
	}, nil
}

// Update folds newly observed closed trades into the ledgers and recomputes
// unrealized PnL from the open positions and their current quotes. A trade
// already applied (same idempotency key) is ignored, so feeding the same
// trailing history window every cycle does not double-count.
func (g *Gate) Update(ctx context.Context, closed []domain.TradeRecord, open []domain.Position, quotes map[string]ports.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range closed {
		key := t.Key()
		if _, seen := g.applied[key]; seen {
			continue
		}
		g.applied[key] = struct{}{}
		g.global.realized += t.PnL
		g.assetLedger(t.Symbol).realized += t.PnL
		g.strategyLedger(t.StrategyName).realized += t.PnL
		g.logger.Debug(ctx, "trade applied to drawdown ledgers", map[string]interface{}{
			"symbol":   t.Symbol,
			"strategy": t.StrategyName,
			"pnl":      t.PnL,
		})
	}

	g.global.unrealized = 0
	for _, l := range g.byAsset {
		l.unrealized = 0
	}
	for _, l := range g.byStrategy {
		l.unrealized = 0
	}
	for _, p := range open {
		quote, ok := quotes[p.Symbol]
		if !ok {
			g.logger.Warn(ctx, "no quote for open position, skipping mark-to-market", map[string]interface{}{
				"symbol": p.Symbol,
			})
			continue
		}
		pnl := unrealizedPnL(p, quote)
		g.global.unrealized += pnl
		g.assetLedger(p.Symbol).unrealized += pnl
		g.strategyLedger(p.StrategyName).unrealized += pnl
	}

	g.refreshPeaks()
}

// Admit decides whether a directive may proceed. Only entries are gated;
// DirectiveNone and DirectiveExitAll (and CLOSE orders generally) pass
// unconditionally.
func (g *Gate) Admit(ctx context.Context, d domain.Directive) Decision {
	if d.Kind != domain.DirectiveEnter {
		return Decision{Admitted: true}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	bal := g.limits.InitialBalance

	// A limit is a tolerance, not a trigger: drawdown exactly at the limit
	// still admits, only strictly exceeding it denies.
	if g.limits.GlobalMaxDrawdownPct != nil {
		if dd := g.global.drawdownPct(bal); dd > *g.limits.GlobalMaxDrawdownPct {
			return g.deny(ctx, d, "global", dd, *g.limits.GlobalMaxDrawdownPct)
		}
	}
	if limit, ok := g.limits.PerAssetMaxDrawdownPct[d.Symbol]; ok {
		if dd := g.assetLedger(d.Symbol).drawdownPct(bal); dd > limit {
			return g.deny(ctx, d, "asset "+d.Symbol, dd, limit)
		}
	}
	if limit, ok := g.limits.PerStrategyMaxDrawdownPct[d.StrategyName]; ok {
		if dd := g.strategyLedger(d.StrategyName).drawdownPct(bal); dd > limit {
			return g.deny(ctx, d, "strategy "+d.StrategyName, dd, limit)
		}
	}
	return Decision{Admitted: true}
}

// Snapshot reports the current drawdown percentages for logging.
type Snapshot struct {
	GlobalDrawdownPct   float64
	AssetDrawdownPct    map[string]float64
	StrategyDrawdownPct map[string]float64
}

// Snapshot returns the current drawdown state across all scopes.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	bal := g.limits.InitialBalance

	s := Snapshot{
		GlobalDrawdownPct:   g.global.drawdownPct(bal),
		AssetDrawdownPct:    make(map[string]float64, len(g.byAsset)),
		StrategyDrawdownPct: make(map[string]float64, len(g.byStrategy)),
	}
	for sym, l := range g.byAsset {
		s.AssetDrawdownPct[sym] = l.drawdownPct(bal)
	}
	for name, l := range g.byStrategy {
		s.StrategyDrawdownPct[name] = l.drawdownPct(bal)
	}
	return s
}

func (g *Gate) deny(ctx context.Context, d domain.Directive, scope string, dd, limit float64) Decision {
	reason := fmt.Sprintf("%s drawdown %.2f%% breaches limit %.2f%%", scope, dd, limit)
	g.logger.Warn(ctx, "directive denied by risk gate", map[string]interface{}{
		"symbol":   d.Symbol,
		"strategy": d.StrategyName,
		"reason":   reason,
	})
	return Decision{Admitted: false, Reason: reason}
}

func (g *Gate) assetLedger(symbol string) *scopeLedger {
	l, ok := g.byAsset[symbol]
	if !ok {
		l = &scopeLedger{peak: g.limits.InitialBalance}
		g.byAsset[symbol] = l
	}
	return l
}

func (g *Gate) strategyLedger(name string) *scopeLedger {
	l, ok := g.byStrategy[name]
	if !ok {
		l = &scopeLedger{peak: g.limits.InitialBalance}
		g.byStrategy[name] = l
	}
	return l
}

func (g *Gate) refreshPeaks() {
	bal := g.limits.InitialBalance
	if eq := g.global.equity(bal); eq > g.global.peak {
		g.global.peak = eq
	}
	for _, l := range g.byAsset {
		if eq := l.equity(bal); eq > l.peak {
			l.peak = eq
		}
	}
	for _, l := range g.byStrategy {
		if eq := l.equity(bal); eq > l.peak {
			l.peak = eq
		}
	}
}

// unrealizedPnL marks one open position to the current quote: long positions
// exit at the bid, short positions at the ask.
func unrealizedPnL(p domain.Position, quote ports.Tick) float64 {
	if p.Direction == domain.Sell {
		return (p.EntryPrice - quote.Ask) * p.Volume
	}
	return (quote.Bid - p.EntryPrice) * p.Volume
}
