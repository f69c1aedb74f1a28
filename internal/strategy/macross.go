package strategy

import (
	"context"
	"fmt"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
	"multiStratBot/internal/strategy/indicators"
)

// MACrossover trades a fast/slow moving-average crossover with an RSI
// overbought filter. Stops and targets are sized off the ATR so they adapt to
// current volatility. Parameters:
//
//	fast_period      fast SMA period (default 20)
//	slow_period      slow SMA period (default 50)
//	rsi_period       RSI period (default 14)
//	rsi_overbought   skip entries above this RSI (default 70)
//	atr_period       ATR period (default 14)
//	atr_multiplier   stop distance in ATRs (default 2)
//	volume           order volume in lots (0 defers to the symbol lot size)
type MACrossover struct {
	logger ports.Logger
}

// NewMACrossover creates an MA crossover strategy.
func NewMACrossover(logger ports.Logger) (*MACrossover, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for ma_crossover strategy: %w", ports.ErrConfigurationError)
	}
	return &MACrossover{logger: logger}, nil
}

func (s *MACrossover) Evaluate(ctx context.Context, data domain.Series, params map[string]float64) (domain.Directive, error) {
	fast := int(paramOr(params, "fast_period", 20))
	slow := int(paramOr(params, "slow_period", 50))
	rsiPeriod := int(paramOr(params, "rsi_period", 14))
	overbought := paramOr(params, "rsi_overbought", 70)
	atrPeriod := int(paramOr(params, "atr_period", 14))
	atrMult := paramOr(params, "atr_multiplier", 2)

	if fast <= 0 || slow <= 0 || fast >= slow {
		return domain.Directive{}, fmt.Errorf("fast period %d must be positive and below slow period %d: %w", fast, slow, ports.ErrConfigurationError)
	}

	need := slow + 1
	if rsiPeriod+1 > need {
		need = rsiPeriod + 1
	}
	if atrPeriod+1 > need {
		need = atrPeriod + 1
	}
	if data.Len() < need {
		s.logger.Debug(ctx, "ma_crossover: not enough bars, holding", map[string]interface{}{
			"bars": data.Len(), "need": need,
		})
		return domain.Directive{Kind: domain.DirectiveNone}, nil
	}

	fastMA, err := indicators.SMA(data.Klines, fast)
	if err != nil {
		return domain.Directive{}, fmt.Errorf("fast SMA: %w", err)
	}
	slowMA, err := indicators.SMA(data.Klines, slow)
	if err != nil {
		return domain.Directive{}, fmt.Errorf("slow SMA: %w", err)
	}

	switch {
	case fastMA > slowMA:
		rsi, err := indicators.RSI(data.Klines, rsiPeriod)
		if err != nil {
			return domain.Directive{}, fmt.Errorf("RSI: %w", err)
		}
		if rsi >= overbought {
			s.logger.Debug(ctx, "ma_crossover: crossover up but RSI overbought, holding", map[string]interface{}{
				"rsi": rsi, "overbought": overbought,
			})
			return domain.Directive{Kind: domain.DirectiveNone}, nil
		}
		atr, err := indicators.ATR(data.Klines, atrPeriod)
		if err != nil {
			return domain.Directive{}, fmt.Errorf("ATR: %w", err)
		}
		last := data.Klines[data.Len()-1].Close
		sl := last - atr*atrMult
		tp := last + 2*atr*atrMult
		return domain.Directive{
			Kind:       domain.DirectiveEnter,
			Direction:  domain.Buy,
			Volume:     paramOr(params, "volume", 0),
			StopLoss:   &sl,
			TakeProfit: &tp,
		}, nil
	case fastMA < slowMA:
		return domain.Directive{Kind: domain.DirectiveExitAll}, nil
	default:
		return domain.Directive{Kind: domain.DirectiveNone}, nil
	}
}
