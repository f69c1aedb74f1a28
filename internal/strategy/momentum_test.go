package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

func seriesFromCloses(closes ...float64) domain.Series {
	klines := make([]domain.Kline, len(closes))
	for i, c := range closes {
		klines[i] = domain.Kline{Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return domain.Series{Symbol: "EURUSD", Timeframe: domain.H1, Klines: klines}
}

func TestMomentumEntersOnRise(t *testing.T) {
	s, err := NewMomentum(&mockLogger{})
	require.NoError(t, err)

	d, err := s.Evaluate(context.Background(), seriesFromCloses(100, 101), map[string]float64{
		"volume":          0.2,
		"stop_loss_pct":   1,
		"take_profit_pct": 2,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DirectiveEnter, d.Kind)
	assert.Equal(t, domain.Buy, d.Direction)
	assert.Equal(t, 0.2, d.Volume)
	require.NotNil(t, d.StopLoss)
	require.NotNil(t, d.TakeProfit)
	assert.InDelta(t, 99.99, *d.StopLoss, 1e-9)   // 101 * 0.99
	assert.InDelta(t, 103.02, *d.TakeProfit, 1e-9) // 101 * 1.02
}

func TestMomentumExitsOnFall(t *testing.T) {
	s, err := NewMomentum(&mockLogger{})
	require.NoError(t, err)

	d, err := s.Evaluate(context.Background(), seriesFromCloses(101, 100), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectiveExitAll, d.Kind)
}

func TestMomentumHoldsOnFlat(t *testing.T) {
	s, err := NewMomentum(&mockLogger{})
	require.NoError(t, err)

	d, err := s.Evaluate(context.Background(), seriesFromCloses(100, 100), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectiveNone, d.Kind)
}

func TestMomentumLookbackParameter(t *testing.T) {
	s, err := NewMomentum(&mockLogger{})
	require.NoError(t, err)

	// Last close below the previous bar but above the close 3 bars back.
	d, err := s.Evaluate(context.Background(), seriesFromCloses(100, 104, 105, 103), map[string]float64{"lookback": 3})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectiveEnter, d.Kind)
}

func TestMomentumHoldsWithoutEnoughBars(t *testing.T) {
	s, err := NewMomentum(&mockLogger{})
	require.NoError(t, err)

	d, err := s.Evaluate(context.Background(), seriesFromCloses(100), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectiveNone, d.Kind)

	d, err = s.Evaluate(context.Background(), domain.Series{}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectiveNone, d.Kind)
}

func TestMomentumRejectsBadLookback(t *testing.T) {
	s, err := NewMomentum(&mockLogger{})
	require.NoError(t, err)

	_, err = s.Evaluate(context.Background(), seriesFromCloses(100, 101), map[string]float64{"lookback": 0})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
