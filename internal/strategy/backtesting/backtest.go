package backtesting

import (
	"context"
	"fmt"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
	"multiStratBot/internal/strategy/analytics"
)

// Config holds configuration for one backtest run.
type Config struct {
	InitialBalance float64
	Volume         float64 // lots per entry when the strategy leaves volume at 0
	Warmup         int     // bars fed to the strategy before the first evaluation
}

// Result is the outcome of a backtest: the simulated round trips and their
// aggregate metrics.
type Result struct {
	Trades  []domain.TradeRecord
	Metrics *analytics.PerformanceMetrics
}

// openPosition is the simulator's single open position.
type openPosition struct {
	direction  domain.OrderDirection
	volume     float64
	entryPrice float64
	entryTime  domain.Kline
	stopLoss   *float64
	takeProfit *float64
}

// Run replays a series bar by bar through a strategy. Each bar the simulator
// first applies stop-loss/take-profit using the bar's range (stop checked
// before target, the conservative order), then hands the strategy the history
// up to and including the bar. Entries fill at the bar close. A position
// still open after the last bar is liquidated at the final close so it shows
// up in the statistics.
func Run(ctx context.Context, strat ports.Strategy, params map[string]float64, series domain.Series, cfg Config) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy is required for backtest: %w", ports.ErrConfigurationError)
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive: %w", ports.ErrConfigurationError)
	}
	warmup := cfg.Warmup
	if warmup < 1 {
		warmup = 1
	}
	if series.Len() <= warmup {
		return nil, fmt.Errorf("need more than %d bars, got %d: %w", warmup, series.Len(), ports.ErrData)
	}

	var trades []domain.TradeRecord
	var open *openPosition

	closeAt := func(price float64, exitBar domain.Kline) {
		pnl := (price - open.entryPrice) * open.volume
		if open.direction == domain.Sell {
			pnl = -pnl
		}
		trades = append(trades, domain.TradeRecord{
			Symbol:       series.Symbol,
			StrategyName: "backtest",
			EntryTime:    open.entryTime.CloseTime,
			ExitTime:     exitBar.CloseTime,
			EntryPrice:   open.entryPrice,
			ExitPrice:    price,
			Size:         open.volume,
			PnL:          pnl,
			StopLoss:     open.stopLoss,
			TakeProfit:   open.takeProfit,
		})
		open = nil
	}

	for i := warmup; i < series.Len(); i++ {
		bar := series.Klines[i]

		if open != nil {
			if price, hit := protectiveExit(open, bar); hit {
				closeAt(price, bar)
			}
		}

		prefix := domain.Series{
			Symbol:    series.Symbol,
			Timeframe: series.Timeframe,
			Klines:    series.Klines[:i+1],
		}
		d, err := strat.Evaluate(ctx, prefix, params)
		if err != nil {
			return nil, fmt.Errorf("strategy failed at bar %d: %w", i, err)
		}

		switch d.Kind {
		case domain.DirectiveEnter:
			if open != nil {
				continue
			}
			volume := d.Volume
			if volume == 0 {
				volume = cfg.Volume
			}
			if volume <= 0 {
				return nil, fmt.Errorf("no volume configured for entry at bar %d: %w", i, ports.ErrConfigurationError)
			}
			open = &openPosition{
				direction:  d.Direction,
				volume:     volume,
				entryPrice: bar.Close,
				entryTime:  bar,
				stopLoss:   d.StopLoss,
				takeProfit: d.TakeProfit,
			}
		case domain.DirectiveExitAll:
			if open != nil {
				closeAt(bar.Close, bar)
			}
		}
	}

	if open != nil {
		closeAt(series.Klines[series.Len()-1].Close, series.Klines[series.Len()-1])
	}

	return &Result{
		Trades:  trades,
		Metrics: analytics.AnalyzePerformance(trades, cfg.InitialBalance),
	}, nil
}

// protectiveExit reports whether the bar's range triggers the position's stop
// or target, and at which price.
func protectiveExit(p *openPosition, bar domain.Kline) (float64, bool) {
	if p.direction == domain.Sell {
		if p.stopLoss != nil && bar.High >= *p.stopLoss {
			return *p.stopLoss, true
		}
		if p.takeProfit != nil && bar.Low <= *p.takeProfit {
			return *p.takeProfit, true
		}
		return 0, false
	}
	if p.stopLoss != nil && bar.Low <= *p.stopLoss {
		return *p.stopLoss, true
	}
	if p.takeProfit != nil && bar.High >= *p.takeProfit {
		return *p.takeProfit, true
	}
	return 0, false
}
