package indicators

import (
	"fmt"

	"multiStratBot/internal/domain"
)

// SMA computes the simple moving average of the last period closes.
func SMA(klines []domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	if len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(klines), period)
	}

	total := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		total += klines[i].Close
	}
	return total / float64(period), nil
}

// EMA computes the exponential moving average over all given bars, seeding
// with an SMA of the first period closes.
func EMA(klines []domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(klines), period)
	}

	ema, err := SMA(klines[:period], period)
	if err != nil {
		return 0, err
	}
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(klines); i++ {
		ema = (klines[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}
