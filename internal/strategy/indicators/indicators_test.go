package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiStratBot/internal/domain"
)

func barsFromCloses(closes ...float64) []domain.Kline {
	bars := make([]domain.Kline, len(closes))
	for i, c := range closes {
		bars[i] = domain.Kline{Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return bars
}

func TestSMA(t *testing.T) {
	bars := barsFromCloses(1, 2, 3, 4, 5)

	v, err := SMA(bars, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, v, 1e-9)

	v, err = SMA(bars, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, v, 1e-9)
}

func TestSMANotEnoughData(t *testing.T) {
	_, err := SMA(barsFromCloses(1, 2), 3)
	assert.Error(t, err)
}

func TestEMAConvergesTowardRecentPrices(t *testing.T) {
	// After a jump, the EMA should sit between the old level and the new one,
	// closer to recent closes than the SMA is.
	bars := barsFromCloses(10, 10, 10, 10, 10, 20, 20, 20, 20, 20)

	ema, err := EMA(bars, 5)
	require.NoError(t, err)
	sma, err := SMA(bars, 10)
	require.NoError(t, err)

	assert.Greater(t, ema, sma)
	assert.Less(t, ema, 20.0)
}

func TestRSIExtremes(t *testing.T) {
	up := barsFromCloses(1, 2, 3, 4, 5, 6, 7, 8)
	v, err := RSI(up, 5)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	down := barsFromCloses(8, 7, 6, 5, 4, 3, 2, 1)
	v, err = RSI(down, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	flat := barsFromCloses(5, 5, 5, 5, 5, 5, 5)
	v, err = RSI(flat, 5)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
}

func TestRSINotEnoughData(t *testing.T) {
	_, err := RSI(barsFromCloses(1, 2, 3), 5)
	assert.Error(t, err)
}

func TestATRConstantRange(t *testing.T) {
	// Every bar has a 1.0 high-low range and closes inside the next bar's
	// range, so the ATR settles at 1.0.
	bars := barsFromCloses(10, 10, 10, 10, 10, 10)

	v, err := ATR(bars, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestATRNotEnoughData(t *testing.T) {
	_, err := ATR(barsFromCloses(1, 2, 3), 3)
	assert.Error(t, err)
}
