package indicators

import (
	"fmt"
	"math"

	"multiStratBot/internal/domain"
)

// ATR computes the Average True Range with Wilder's smoothing. Needs at
// least period+1 bars.
func ATR(klines []domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(klines) < period+1 {
		return 0, fmt.Errorf("not enough data (%d) to calculate ATR for period %d", len(klines), period)
	}

	trueRanges := make([]float64, len(klines))
	trueRanges[0] = klines[0].High - klines[0].Low
	for i := 1; i < len(klines); i++ {
		tr1 := klines[i].High - klines[i].Low
		tr2 := math.Abs(klines[i].High - klines[i-1].Close)
		tr3 := math.Abs(klines[i].Low - klines[i-1].Close)
		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)
	for i := period; i < len(klines); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}
	return atr, nil
}
