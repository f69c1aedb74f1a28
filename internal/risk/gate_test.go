package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func ptr(v float64) *float64 { return &v }

func newTestGate(t *testing.T, limits domain.RiskLimits) *Gate {
	t.Helper()
	g, err := New(Config{Limits: limits, Logger: &mockLogger{}})
	require.NoError(t, err)
	return g
}

func closedTrade(symbol, strategy string, pnl float64, seq int) domain.TradeRecord {
	entry := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute)
	return domain.TradeRecord{
		Symbol:       symbol,
		StrategyName: strategy,
		EntryTime:    entry,
		ExitTime:     entry.Add(30 * time.Minute),
		PnL:          pnl,
	}
}

func enter(symbol, strategy string) domain.Directive {
	return domain.Directive{
		Kind:         domain.DirectiveEnter,
		Direction:    domain.Buy,
		Volume:       0.1,
		Symbol:       symbol,
		StrategyName: strategy,
	}
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestAdmitWithoutLimits(t *testing.T) {
	g := newTestGate(t, domain.RiskLimits{InitialBalance: 10000})
	g.Update(context.Background(), []domain.TradeRecord{closedTrade("EURUSD", "momo", -9000, 0)}, nil, nil)

	dec := g.Admit(context.Background(), enter("EURUSD", "momo"))
	assert.True(t, dec.Admitted)
}

func TestGlobalDrawdownDeniesEntry(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{
		GlobalMaxDrawdownPct: ptr(30),
		InitialBalance:       10000,
	})

	// 3100 lost from a 10000 peak is a 31% drawdown.
	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -3100, 0)}, nil, nil)

	dec := g.Admit(ctx, enter("EURUSD", "momo"))
	require.False(t, dec.Admitted)
	assert.Contains(t, dec.Reason, "global")
	assert.Contains(t, dec.Reason, "31.00%")

	// Exits must pass even while the account is gated.
	exit := domain.Directive{Kind: domain.DirectiveExitAll, Symbol: "EURUSD", StrategyName: "momo"}
	assert.True(t, g.Admit(ctx, exit).Admitted)
}

func TestDrawdownExactlyAtLimitStillAdmits(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{
		GlobalMaxDrawdownPct:      ptr(30),
		PerAssetMaxDrawdownPct:    map[string]float64{"EURUSD": 30},
		PerStrategyMaxDrawdownPct: map[string]float64{"momo": 30},
		InitialBalance:            10000,
	})

	// 3000 lost from a 10000 peak sits exactly on every 30% limit.
	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -3000, 0)}, nil, nil)

	dec := g.Admit(ctx, enter("EURUSD", "momo"))
	assert.True(t, dec.Admitted, "a limit is a tolerance; only exceeding it denies")

	// One more point of loss tips all three scopes over.
	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -100, 1)}, nil, nil)
	assert.False(t, g.Admit(ctx, enter("EURUSD", "momo")).Admitted)
}

func TestPerAssetScopeIsIsolated(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{
		PerAssetMaxDrawdownPct: map[string]float64{"EURUSD": 10},
		InitialBalance:         10000,
	})

	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -1100, 0)}, nil, nil)

	dec := g.Admit(ctx, enter("EURUSD", "momo"))
	require.False(t, dec.Admitted)
	assert.Contains(t, dec.Reason, "asset EURUSD")

	// Another symbol's losses do not gate this one.
	assert.True(t, g.Admit(ctx, enter("GBPUSD", "momo")).Admitted)
}

func TestPerStrategyScopeIsIsolated(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{
		PerStrategyMaxDrawdownPct: map[string]float64{"momo": 5},
		InitialBalance:            10000,
	})

	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -600, 0)}, nil, nil)

	dec := g.Admit(ctx, enter("EURUSD", "momo"))
	require.False(t, dec.Admitted)
	assert.Contains(t, dec.Reason, "strategy momo")

	assert.True(t, g.Admit(ctx, enter("EURUSD", "meanrev")).Admitted)
}

func TestUpdateIsIdempotentPerTrade(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{InitialBalance: 10000})
	trades := []domain.TradeRecord{closedTrade("EURUSD", "momo", -500, 0)}

	g.Update(ctx, trades, nil, nil)
	g.Update(ctx, trades, nil, nil)
	g.Update(ctx, trades, nil, nil)

	snap := g.Snapshot()
	assert.InDelta(t, 5.0, snap.GlobalDrawdownPct, 1e-9)
}

func TestUnrealizedLossCountsTowardDrawdown(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{
		GlobalMaxDrawdownPct: ptr(3),
		InitialBalance:       10000,
	})

	open := []domain.Position{{
		Symbol:     "EURUSD",
		Direction:  domain.Buy,
		Volume:     10000,
		EntryPrice: 1.10,
		// strategy name drives the per-strategy ledger
		StrategyName: "momo",
	}}
	quotes := map[string]ports.Tick{"EURUSD": {Bid: 1.06, Ask: 1.0601}}

	// (1.06 - 1.10) * 10000 = -400 unrealized, a 4% drawdown.
	g.Update(ctx, nil, open, quotes)

	dec := g.Admit(ctx, enter("EURUSD", "momo"))
	require.False(t, dec.Admitted)
	assert.Contains(t, dec.Reason, "global")

	// Position recovers, unrealized is recomputed, gate reopens.
	g.Update(ctx, nil, open, map[string]ports.Tick{"EURUSD": {Bid: 1.10, Ask: 1.1001}})
	assert.True(t, g.Admit(ctx, enter("EURUSD", "momo")).Admitted)
}

func TestShortPositionMarksAgainstAsk(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{InitialBalance: 10000})

	open := []domain.Position{{
		Symbol:       "EURUSD",
		Direction:    domain.Sell,
		Volume:       10000,
		EntryPrice:   1.10,
		StrategyName: "momo",
	}}
	// Short from 1.10, ask now 1.12: -200.
	g.Update(ctx, nil, open, map[string]ports.Tick{"EURUSD": {Bid: 1.1199, Ask: 1.12}})

	snap := g.Snapshot()
	assert.InDelta(t, 2.0, snap.GlobalDrawdownPct, 1e-9)
}

func TestPeakRatchetsUpWithProfits(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{InitialBalance: 10000})

	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", 1000, 0)}, nil, nil)
	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -1000, 1)}, nil, nil)

	// Equity is back at the baseline, but the peak moved to 11000.
	snap := g.Snapshot()
	assert.InDelta(t, 1000.0/11000.0*100, snap.GlobalDrawdownPct, 1e-9)
}

func TestMissingQuoteSkipsMarkToMarket(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{InitialBalance: 10000})

	open := []domain.Position{{
		Symbol:       "XAUUSD",
		Direction:    domain.Buy,
		Volume:       1,
		EntryPrice:   2000,
		StrategyName: "momo",
	}}
	g.Update(ctx, nil, open, map[string]ports.Tick{})

	snap := g.Snapshot()
	assert.Zero(t, snap.GlobalDrawdownPct)
}

func TestDefaultInitialBalance(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, domain.RiskLimits{GlobalMaxDrawdownPct: ptr(30)})

	// 31% of the default 10000 baseline.
	g.Update(ctx, []domain.TradeRecord{closedTrade("EURUSD", "momo", -3100, 0)}, nil, nil)
	assert.False(t, g.Admit(ctx, enter("EURUSD", "momo")).Admitted)
}
