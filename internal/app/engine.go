package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
	"multiStratBot/internal/risk"
)

// DataAssembler produces the per-cycle market data snapshot for one symbol.
type DataAssembler interface {
	Assemble(ctx context.Context, symbol string, base domain.Timeframe, required []domain.Timeframe, now time.Time) (map[domain.Timeframe]domain.Series, error)
}

// StrategyEvaluator runs the configured strategies for a symbol.
type StrategyEvaluator interface {
	EvaluateSymbol(ctx context.Context, symbol string, data map[domain.Timeframe]domain.Series) []domain.Directive
}

// RiskGate decides which directives may reach the broker.
type RiskGate interface {
	Update(ctx context.Context, closed []domain.TradeRecord, open []domain.Position, quotes map[string]ports.Tick)
	Admit(ctx context.Context, d domain.Directive) risk.Decision
}

// symbolPlan is the precomputed data requirement for one symbol: which base
// timeframe to fetch and which frames the symbol's strategies consume.
type symbolPlan struct {
	cfg      domain.SymbolConfig
	required []domain.Timeframe
}

// Engine executes one trading cycle end to end: refresh the risk ledgers from
// broker history, assemble market data, evaluate strategies, gate and submit
// the surviving directives, then export state for reporting. The export step
// never fails a cycle.
type Engine struct {
	broker    ports.BrokerClient
	assembler DataAssembler
	runner    StrategyEvaluator
	gate      RiskGate
	tradeRepo ports.TradeRepository
	posRepo   ports.PositionRepository
	logger    ports.Logger
	plans     []symbolPlan
	now       func() time.Time
}

// Config holds the engine's collaborators and the traded portfolio.
type Config struct {
	Broker     ports.BrokerClient
	Assembler  DataAssembler
	Runner     StrategyEvaluator
	Gate       RiskGate
	TradeRepo  ports.TradeRepository    // optional export sink
	PosRepo    ports.PositionRepository // optional export sink
	Logger     ports.Logger
	Symbols    []domain.SymbolConfig
	Strategies []domain.StrategyConfig
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewEngine creates the cycle engine and precomputes each symbol's data plan.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Broker == nil || cfg.Assembler == nil || cfg.Runner == nil || cfg.Gate == nil {
		return nil, fmt.Errorf("broker, assembler, runner and gate are required for engine: %w", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for engine: %w", ports.ErrConfigurationError)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	plans := make([]symbolPlan, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		var required []domain.Timeframe
		seen := make(map[domain.Timeframe]bool)
		for _, st := range cfg.Strategies {
			if st.Symbol != sym.Name || seen[st.Timeframe] {
				continue
			}
			seen[st.Timeframe] = true
			required = append(required, st.Timeframe)
		}
		if len(required) == 0 {
			cfg.Logger.Warn(context.Background(), "symbol has no strategies, skipping", map[string]interface{}{
				"symbol": sym.Name,
			})
			continue
		}
		plans = append(plans, symbolPlan{cfg: sym, required: required})
	}

	return &Engine{
		broker:    cfg.Broker,
		assembler: cfg.Assembler,
		runner:    cfg.Runner,
		gate:      cfg.Gate,
		tradeRepo: cfg.TradeRepo,
		posRepo:   cfg.PosRepo,
		logger:    cfg.Logger,
		plans:     plans,
		now:       now,
	}, nil
}

// RunCycle executes one full trading cycle. It returns an error only when no
// symbol could be processed at all; partial failures are logged and the rest
// of the cycle proceeds.
func (e *Engine) RunCycle(ctx context.Context) error {
	op := "RunCycle"
	cycleID := uuid.NewString()
	fields := map[string]interface{}{"cycleID": cycleID}
	e.logger.Info(ctx, op+": cycle started", fields)

	closed, open := e.refreshLedgers(ctx, cycleID)

	processed := 0
	var firstErr error
	for _, plan := range e.plans {
		if err := e.processSymbol(ctx, cycleID, plan); err != nil {
			e.logger.Error(ctx, err, op+": symbol processing failed", map[string]interface{}{
				"cycleID": cycleID,
				"symbol":  plan.cfg.Name,
			})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		processed++
	}

	e.export(ctx, cycleID, closed, open)

	if processed == 0 && firstErr != nil {
		return fmt.Errorf("%s: no symbol processed: %w", op, firstErr)
	}
	e.logger.Info(ctx, op+": cycle finished", map[string]interface{}{
		"cycleID":   cycleID,
		"processed": processed,
	})
	return nil
}

// refreshLedgers pulls broker history and current exposure into the risk
// ledgers. Broker hiccups here degrade the cycle, they do not abort it.
func (e *Engine) refreshLedgers(ctx context.Context, cycleID string) ([]domain.TradeRecord, []domain.Position) {
	closed, err := e.broker.GetClosedTrades(ctx)
	if err != nil {
		e.logger.Warn(ctx, "closed trade history unavailable this cycle", map[string]interface{}{
			"cycleID": cycleID, "error": err.Error(),
		})
	}
	open, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		e.logger.Warn(ctx, "open positions unavailable this cycle", map[string]interface{}{
			"cycleID": cycleID, "error": err.Error(),
		})
	}

	quotes := make(map[string]ports.Tick)
	for _, p := range open {
		if _, ok := quotes[p.Symbol]; ok {
			continue
		}
		tick, err := e.broker.GetTick(ctx, p.Symbol)
		if err != nil {
			e.logger.Warn(ctx, "no quote for mark-to-market", map[string]interface{}{
				"cycleID": cycleID, "symbol": p.Symbol, "error": err.Error(),
			})
			continue
		}
		quotes[p.Symbol] = tick
	}

	e.gate.Update(ctx, closed, open, quotes)
	return closed, open
}

func (e *Engine) processSymbol(ctx context.Context, cycleID string, plan symbolPlan) error {
	data, err := e.assembler.Assemble(ctx, plan.cfg.Name, plan.cfg.BaseTimeframe, plan.required, e.now())
	if err != nil {
		return fmt.Errorf("assembling data for %s: %w", plan.cfg.Name, err)
	}

	for _, d := range e.runner.EvaluateSymbol(ctx, plan.cfg.Name, data) {
		e.executeDirective(ctx, cycleID, plan.cfg, d)
	}
	return nil
}

// executeDirective gates and submits one directive. Broker rejections and
// submission errors only affect this directive.
func (e *Engine) executeDirective(ctx context.Context, cycleID string, sym domain.SymbolConfig, d domain.Directive) {
	fields := map[string]interface{}{
		"cycleID":  cycleID,
		"symbol":   d.Symbol,
		"strategy": d.StrategyName,
		"kind":     d.Kind.String(),
	}

	decision := e.gate.Admit(ctx, d)
	if !decision.Admitted {
		fields["reason"] = decision.Reason
		e.logger.Info(ctx, "directive blocked by risk gate", fields)
		return
	}

	req, ok := e.buildOrder(sym, d)
	if !ok {
		return
	}
	result, err := e.broker.SendMarketOrder(ctx, req)
	if err != nil {
		e.logger.Error(ctx, err, "order submission failed", fields)
		return
	}
	if !result.Success {
		fields["reason"] = result.ErrorMessage
		e.logger.Warn(ctx, "order not filled", fields)
		return
	}
	fields["orderID"] = result.OrderID
	e.logger.Info(ctx, "order filled", fields)
}

// buildOrder translates a directive into a broker order request. The order
// comment carries "<strategy>-<timeframe>" so positions and deals can be
// attributed back to their strategy.
func (e *Engine) buildOrder(sym domain.SymbolConfig, d domain.Directive) (domain.OrderRequest, bool) {
	comment := fmt.Sprintf("%s-%s", d.StrategyName, d.Timeframe)
	switch d.Kind {
	case domain.DirectiveEnter:
		volume := d.Volume
		if volume == 0 {
			volume = sym.LotSize
		}
		return domain.OrderRequest{
			Symbol:     d.Symbol,
			Direction:  d.Direction,
			Volume:     volume,
			StopLoss:   d.StopLoss,
			TakeProfit: d.TakeProfit,
			Comment:    comment,
			Magic:      d.Magic,
		}, true
	case domain.DirectiveExitAll:
		return domain.OrderRequest{
			Symbol:    d.Symbol,
			Direction: domain.Close,
			Comment:   comment,
			Magic:     d.Magic,
		}, true
	default:
		return domain.OrderRequest{}, false
	}
}

// export pushes the cycle's state to the reporting sinks. Failures are logged
// and swallowed so reporting can never stall trading.
func (e *Engine) export(ctx context.Context, cycleID string, closed []domain.TradeRecord, open []domain.Position) {
	if e.tradeRepo != nil {
		for _, t := range closed {
			if err := e.tradeRepo.SaveTrade(ctx, t); err != nil {
				e.logger.Warn(ctx, "trade export failed", map[string]interface{}{
					"cycleID": cycleID, "trade": t.Key(), "error": err.Error(),
				})
			}
		}
	}
	if e.posRepo != nil {
		if err := e.posRepo.SnapshotPositions(ctx, cycleID, open); err != nil {
			e.logger.Warn(ctx, "position snapshot export failed", map[string]interface{}{
				"cycleID": cycleID, "error": err.Error(),
			})
		}
	}
}
