package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
	"multiStratBot/internal/strategy/analytics"
	"multiStratBot/internal/strategy/backtesting"
)

// ParameterRange defines the grid for one tunable parameter.
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Result is one grid point: the parameter set, its backtest metrics and the
// score used for ranking.
type Result struct {
	Params  map[string]float64
	Metrics *analytics.PerformanceMetrics
	Score   float64
}

// Config holds configuration for a grid search.
type Config struct {
	Ranges         []ParameterRange
	InitialBalance float64
	Volume         float64
	Warmup         int
	// ScoreFunction ranks a grid point. Defaults to DefaultScoreFunction.
	ScoreFunction func(*analytics.PerformanceMetrics) float64
	Logger        ports.Logger
}

// Optimizer runs a strategy over every point of a parameter grid and ranks
// the outcomes.
type Optimizer struct {
	cfg    Config
	logger ports.Logger
}

// New creates an Optimizer. Ranges must be non-empty and each range must
// have a positive step.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer: %w", ports.ErrConfigurationError)
	}
	if len(cfg.Ranges) == 0 {
		return nil, fmt.Errorf("at least one parameter range is required: %w", ports.ErrConfigurationError)
	}
	for _, r := range cfg.Ranges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("invalid range for %q: %w", r.Name, ports.ErrConfigurationError)
		}
	}
	if cfg.ScoreFunction == nil {
		cfg.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{cfg: cfg, logger: cfg.Logger}, nil
}

// Optimize backtests the strategy at every grid point and returns results
// sorted by score, best first. Grid points where the strategy rejects its
// parameters are logged and skipped rather than failing the whole search.
func (o *Optimizer) Optimize(ctx context.Context, strat ports.Strategy, series domain.Series) ([]Result, error) {
	op := "Optimize"
	combinations := o.combinations()
	o.logger.Info(ctx, "Starting parameter grid search", map[string]interface{}{
		"op":     op,
		"points": len(combinations),
		"bars":   series.Len(),
	})

	resultChan := make(chan Result, len(combinations))
	var wg sync.WaitGroup

	for _, params := range combinations {
		wg.Add(1)
		go func(params map[string]float64) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			res, err := backtesting.Run(ctx, strat, params, series, backtesting.Config{
				InitialBalance: o.cfg.InitialBalance,
				Volume:         o.cfg.Volume,
				Warmup:         o.cfg.Warmup,
			})
			if err != nil {
				o.logger.Warn(ctx, "Skipping grid point", map[string]interface{}{
					"op":     op,
					"params": params,
					"error":  err.Error(),
				})
				return
			}
			resultChan <- Result{
				Params:  params,
				Metrics: res.Metrics,
				Score:   o.cfg.ScoreFunction(res.Metrics),
			}
		}(params)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(combinations))
	for r := range resultChan {
		results = append(results, r)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("grid search interrupted: %w: %w", ports.ErrContextCanceled, err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// combinations expands the ranges into the full cartesian grid.
func (o *Optimizer) combinations() []map[string]float64 {
	var out []map[string]float64
	current := make(map[string]float64)

	var expand func(int)
	expand = func(idx int) {
		if idx == len(o.cfg.Ranges) {
			point := make(map[string]float64, len(current))
			for k, v := range current {
				point[k] = v
			}
			out = append(out, point)
			return
		}
		r := o.cfg.Ranges[idx]
		// half-step epsilon so Max itself survives float accumulation
		for v := r.Min; v <= r.Max+r.Step/2; v += r.Step {
			value := v
			if r.IsInt {
				value = math.Round(value)
			}
			current[r.Name] = value
			expand(idx + 1)
		}
		delete(current, r.Name)
	}

	expand(0)
	return out
}

// DefaultScoreFunction blends win rate, profit factor, drawdown and return
// into a single ranking value.
func DefaultScoreFunction(m *analytics.PerformanceMetrics) float64 {
	if m.TotalTrades == 0 {
		return math.Inf(-1)
	}
	score := 0.0
	score += m.WinRate * 0.3
	score += math.Min(m.ProfitFactor, 10) * 0.2
	score += (1 - m.MaxDrawdown) * 0.2
	score += m.ReturnOnInvestment * 0.3
	return score
}
