package strategy

import (
	"context"
	"fmt"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

// Instance binds one configured strategy to its implementation and magic
// number.
type Instance struct {
	Config domain.StrategyConfig
	Impl   ports.Strategy
	Magic  int
}

// Runner drives all configured strategies for a cycle. A single strategy
// failing — by error or by panic — is logged and skipped; it never takes the
// cycle or its sibling strategies down with it.
type Runner struct {
	instances []Instance
	logger    ports.Logger
}

// Config holds configuration for the strategy runner.
type Config struct {
	Instances []Instance
	Logger    ports.Logger
}

// NewRunner creates a strategy runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for strategy runner: %w", ports.ErrConfigurationError)
	}
	for _, inst := range cfg.Instances {
		if inst.Impl == nil {
			return nil, fmt.Errorf("strategy %q has no implementation: %w", inst.Config.Name, ports.ErrConfigurationError)
		}
	}
	return &Runner{instances: cfg.Instances, logger: cfg.Logger}, nil
}

// New builds a strategy implementation from its configured kind.
func New(cfg domain.StrategyConfig, logger ports.Logger) (ports.Strategy, error) {
	switch cfg.Kind {
	case "momentum":
		return NewMomentum(logger)
	case "ma_crossover":
		return NewMACrossover(logger)
	default:
		return nil, fmt.Errorf("unknown strategy kind %q: %w", cfg.Kind, ports.ErrConfigurationError)
	}
}

// EvaluateSymbol runs every strategy configured for the symbol against the
// assembled data and returns the actionable directives, each stamped with the
// identity of the strategy that produced it.
func (r *Runner) EvaluateSymbol(ctx context.Context, symbol string, data map[domain.Timeframe]domain.Series) []domain.Directive {
	var directives []domain.Directive
	for _, inst := range r.instances {
		if inst.Config.Symbol != symbol {
			continue
		}
		series, ok := data[inst.Config.Timeframe]
		if !ok {
			r.logger.Warn(ctx, "no assembled data for strategy timeframe", map[string]interface{}{
				"strategy":  inst.Config.Name,
				"symbol":    symbol,
				"timeframe": inst.Config.Timeframe,
			})
			continue
		}

		d, err := r.evaluate(ctx, inst, series)
		if err != nil {
			r.logger.Error(ctx, err, "strategy evaluation failed, skipping", map[string]interface{}{
				"strategy": inst.Config.Name,
				"symbol":   symbol,
			})
			continue
		}
		if d.Kind == domain.DirectiveNone {
			continue
		}

		d.Symbol = symbol
		d.StrategyName = inst.Config.Name
		d.Timeframe = inst.Config.Timeframe
		d.Magic = inst.Magic
		directives = append(directives, d)
	}
	return directives
}

// evaluate isolates one strategy call, converting panics into errors.
func (r *Runner) evaluate(ctx context.Context, inst Instance, series domain.Series) (d domain.Directive, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d = domain.Directive{Kind: domain.DirectiveNone}
			err = fmt.Errorf("strategy %q panicked: %v", inst.Config.Name, rec)
		}
	}()
	return inst.Impl.Evaluate(ctx, series, inst.Config.Params)
}
