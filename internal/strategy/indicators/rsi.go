package indicators

import (
	"fmt"

	"multiStratBot/internal/domain"
)

// RSI computes the Relative Strength Index using Wilder's smoothing method.
// Needs at least period+1 bars.
func RSI(klines []domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("RSI period must be positive, got %d", period)
	}
	if len(klines) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(klines), period)
	}

	changes := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		changes = append(changes, klines[i].Close-klines[i-1].Close)
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(period-1) + changes[i]) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - changes[i]) / float64(period)
		}
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // flat series has no directional pressure
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}
