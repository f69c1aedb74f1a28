package optimization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// entryBarStrategy enters long once the history reaches params["entry"] bars
// and then holds. On a rising series an earlier entry earns more.
type entryBarStrategy struct{}

func (s *entryBarStrategy) Evaluate(ctx context.Context, data domain.Series, params map[string]float64) (domain.Directive, error) {
	entry, ok := params["entry"]
	if !ok {
		return domain.Directive{}, errors.New("entry parameter missing")
	}
	if entry > 100 {
		return domain.Directive{}, errors.New("entry out of range")
	}
	if data.Len() == int(entry) {
		return domain.Directive{Kind: domain.DirectiveEnter, Direction: domain.Buy}, nil
	}
	return domain.Directive{Kind: domain.DirectiveNone}, nil
}

func risingSeries(n int) domain.Series {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	klines := make([]domain.Kline, n)
	for i := range klines {
		open := start.Add(time.Duration(i) * time.Hour)
		c := 100.0 + float64(i)
		klines[i] = domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1,
		}
	}
	return domain.Series{Symbol: "EURUSD", Timeframe: domain.H1, Klines: klines}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Ranges: []ParameterRange{{Name: "x", Min: 1, Max: 2, Step: 1}}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError, "logger is required")

	_, err = New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError, "ranges are required")

	_, err = New(Config{
		Logger: &mockLogger{},
		Ranges: []ParameterRange{{Name: "x", Min: 1, Max: 2, Step: 0}},
	})
	assert.ErrorIs(t, err, ports.ErrConfigurationError, "step must be positive")
}

func TestCombinationsCoverTheGrid(t *testing.T) {
	o, err := New(Config{
		Logger: &mockLogger{},
		Ranges: []ParameterRange{
			{Name: "a", Min: 1, Max: 3, Step: 1, IsInt: true},
			{Name: "b", Min: 0.5, Max: 1.0, Step: 0.5},
		},
	})
	require.NoError(t, err)

	points := o.combinations()
	require.Len(t, points, 6)

	seen := make(map[[2]float64]bool)
	for _, p := range points {
		require.Len(t, p, 2)
		seen[[2]float64{p["a"], p["b"]}] = true
	}
	assert.True(t, seen[[2]float64{3, 1.0}], "grid must include the max corner")
	assert.True(t, seen[[2]float64{1, 0.5}], "grid must include the min corner")
}

func TestOptimizeRanksEarlierEntryHigher(t *testing.T) {
	o, err := New(Config{
		Logger:         &mockLogger{},
		Ranges:         []ParameterRange{{Name: "entry", Min: 3, Max: 5, Step: 1, IsInt: true}},
		InitialBalance: 10000,
		Volume:         1,
		Warmup:         2,
	})
	require.NoError(t, err)

	results, err := o.Optimize(context.Background(), &entryBarStrategy{}, risingSeries(12))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 3.0, results[0].Params["entry"], "earliest entry holds longest on a rising series")
	assert.Greater(t, results[0].Score, results[2].Score)
	assert.Equal(t, 1, results[0].Metrics.TotalTrades)
}

func TestOptimizeSkipsFailingGridPoints(t *testing.T) {
	o, err := New(Config{
		Logger:         &mockLogger{},
		Ranges:         []ParameterRange{{Name: "entry", Min: 101, Max: 103, Step: 1, IsInt: true}},
		InitialBalance: 10000,
		Volume:         1,
		Warmup:         2,
	})
	require.NoError(t, err)

	results, err := o.Optimize(context.Background(), &entryBarStrategy{}, risingSeries(12))
	require.NoError(t, err)
	assert.Empty(t, results, "every grid point fails parameter validation")
}

func TestOptimizeHonorsCancellation(t *testing.T) {
	o, err := New(Config{
		Logger:         &mockLogger{},
		Ranges:         []ParameterRange{{Name: "entry", Min: 3, Max: 5, Step: 1, IsInt: true}},
		InitialBalance: 10000,
		Volume:         1,
		Warmup:         2,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = o.Optimize(ctx, &entryBarStrategy{}, risingSeries(12))
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
