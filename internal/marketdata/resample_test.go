package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

// mkBars builds n ascending bars of the given duration starting at start.
// Prices derive from the bar index so aggregation results are predictable.
func mkBars(start time.Time, n int, dur time.Duration) []domain.Kline {
	bars := make([]domain.Kline, 0, n)
	for i := 0; i < n; i++ {
		open := start.Add(time.Duration(i) * dur)
		p := float64(i)
		bars = append(bars, domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(dur),
			Open:      p + 10,
			High:      p + 12,
			Low:       p + 9,
			Close:     p + 11,
			Volume:    1,
		})
	}
	return bars
}

func TestResampleAggregatesBuckets(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := domain.Series{
		Symbol:    "EURUSD",
		Timeframe: domain.M1,
		Klines:    mkBars(start, 10, time.Minute),
	}

	out, err := Resample(src, domain.M5)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, domain.M5, out.Timeframe)
	assert.Equal(t, "EURUSD", out.Symbol)

	first := out.Klines[0]
	assert.Equal(t, start, first.OpenTime)
	assert.Equal(t, start.Add(5*time.Minute), first.CloseTime)
	assert.Equal(t, 10.0, first.Open)  // open of bar 0
	assert.Equal(t, 16.0, first.High)  // high of bar 4
	assert.Equal(t, 9.0, first.Low)    // low of bar 0
	assert.Equal(t, 15.0, first.Close) // close of bar 4
	assert.Equal(t, 5.0, first.Volume)
}

func TestResampleAlignsBucketsToEpoch(t *testing.T) {
	// Source starts mid-bucket: 12:03. The first M5 bucket must still open
	// at 12:00, not at the first source bar.
	start := time.Date(2024, 3, 1, 12, 3, 0, 0, time.UTC)
	src := domain.Series{
		Symbol:    "EURUSD",
		Timeframe: domain.M1,
		Klines:    mkBars(start, 4, time.Minute),
	}

	out, err := Resample(src, domain.M5)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), out.Klines[0].OpenTime)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC), out.Klines[1].OpenTime)
}

func TestResampleTwoStepMatchesDirect(t *testing.T) {
	// Deriving H1 from M1 directly and via an M5 intermediate must agree,
	// including on a trailing partial bucket (150 minutes = 2.5 hours).
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := domain.Series{
		Symbol:    "GBPUSD",
		Timeframe: domain.M1,
		Klines:    mkBars(start, 150, time.Minute),
	}

	direct, err := Resample(src, domain.H1)
	require.NoError(t, err)

	viaM5, err := Resample(src, domain.M5)
	require.NoError(t, err)
	twoStep, err := Resample(viaM5, domain.H1)
	require.NoError(t, err)

	require.Equal(t, 3, direct.Len())
	assert.Equal(t, direct.Klines, twoStep.Klines)
}

func TestResampleRejectsNonDerivableTarget(t *testing.T) {
	src := domain.Series{Symbol: "EURUSD", Timeframe: domain.M5}

	_, err := Resample(src, domain.M1) // finer than source
	assert.ErrorIs(t, err, ports.ErrData)

	_, err = Resample(src, domain.W1) // no fixed duration
	assert.ErrorIs(t, err, ports.ErrData)

	_, err = Resample(src, domain.M5) // same frame is not a derivation
	assert.ErrorIs(t, err, ports.ErrData)
}

func TestResampleEmptySource(t *testing.T) {
	src := domain.Series{Symbol: "EURUSD", Timeframe: domain.M1}

	out, err := Resample(src, domain.H1)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, domain.H1, out.Timeframe)
}
