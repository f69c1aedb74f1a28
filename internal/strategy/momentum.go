package strategy

import (
	"context"
	"fmt"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

// Momentum is a minimal directional strategy: enter long when the last close
// is above the close lookback bars earlier, flatten when it is below.
// Parameters:
//
//	lookback         bars between the two compared closes (default 1)
//	volume           order volume in lots (0 defers to the symbol lot size)
//	stop_loss_pct    stop distance as a percent of the entry close (optional)
//	take_profit_pct  target distance as a percent of the entry close (optional)
type Momentum struct {
	logger ports.Logger
}

// NewMomentum creates a momentum strategy.
func NewMomentum(logger ports.Logger) (*Momentum, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for momentum strategy: %w", ports.ErrConfigurationError)
	}
	return &Momentum{logger: logger}, nil
}

func (s *Momentum) Evaluate(ctx context.Context, data domain.Series, params map[string]float64) (domain.Directive, error) {
	lookback := int(paramOr(params, "lookback", 1))
	if lookback < 1 {
		return domain.Directive{}, fmt.Errorf("lookback must be at least 1, got %d: %w", lookback, ports.ErrConfigurationError)
	}
	if data.Len() < lookback+1 {
		s.logger.Debug(ctx, "momentum: not enough bars, holding", map[string]interface{}{
			"bars": data.Len(), "need": lookback + 1,
		})
		return domain.Directive{Kind: domain.DirectiveNone}, nil
	}

	last := data.Klines[data.Len()-1].Close
	ref := data.Klines[data.Len()-1-lookback].Close

	switch {
	case last > ref:
		d := domain.Directive{
			Kind:      domain.DirectiveEnter,
			Direction: domain.Buy,
			Volume:    paramOr(params, "volume", 0),
		}
		if pct, ok := params["stop_loss_pct"]; ok && pct > 0 {
			sl := last * (1 - pct/100)
			d.StopLoss = &sl
		}
		if pct, ok := params["take_profit_pct"]; ok && pct > 0 {
			tp := last * (1 + pct/100)
			d.TakeProfit = &tp
		}
		return d, nil
	case last < ref:
		return domain.Directive{Kind: domain.DirectiveExitAll}, nil
	default:
		return domain.Directive{Kind: domain.DirectiveNone}, nil
	}
}

func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
