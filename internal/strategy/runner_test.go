package strategy

import (
	"context"
	"errors"
	"testing"

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

type stubStrategy struct {
	directive domain.Directive
	err       error
	panics    bool
}

func (s *stubStrategy) Evaluate(ctx context.Context, data domain.Series, params map[string]float64) (domain.Directive, error) {
	if s.panics {
		panic("indicator blew up")
	}
	return s.directive, s.err
}

func h1Data(symbol string) map[domain.Timeframe]domain.Series {
	return map[domain.Timeframe]domain.Series{
		domain.H1: {Symbol: symbol, Timeframe: domain.H1, Klines: make([]domain.Kline, 5)},
	}
}

func instance(name, symbol string, tf domain.Timeframe, impl ports.Strategy, magic int) Instance {
	return Instance{
		Config: domain.StrategyConfig{Name: name, Symbol: symbol, Timeframe: tf},
		Impl:   impl,
		Magic:  magic,
	}
}

func TestEvaluateSymbolStampsIdentity(t *testing.T) {
	impl := &stubStrategy{directive: domain.Directive{Kind: domain.DirectiveEnter, Direction: domain.Buy, Volume: 0.1}}
	r, err := NewRunner(Config{
		Instances: []Instance{instance("momo-H1", "EURUSD", domain.H1, impl, 1234)},
		Logger:    &mockLogger{},
	})
	require.NoError(t, err)

	out := r.EvaluateSymbol(context.Background(), "EURUSD", h1Data("EURUSD"))
	require.Len(t, out, 1)
	assert.Equal(t, "EURUSD", out[0].Symbol)
	assert.Equal(t, "momo-H1", out[0].StrategyName)
	assert.Equal(t, domain.H1, out[0].Timeframe)
	assert.Equal(t, 1234, out[0].Magic)
	assert.Equal(t, domain.Buy, out[0].Direction)
}

func TestEvaluateSymbolSelectsBySymbol(t *testing.T) {
	eur := &stubStrategy{directive: domain.Directive{Kind: domain.DirectiveEnter, Direction: domain.Buy}}
	gbp := &stubStrategy{directive: domain.Directive{Kind: domain.DirectiveEnter, Direction: domain.Sell}}
	r, err := NewRunner(Config{
		Instances: []Instance{
			instance("eur-momo", "EURUSD", domain.H1, eur, 1),
			instance("gbp-momo", "GBPUSD", domain.H1, gbp, 2),
		},
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	out := r.EvaluateSymbol(context.Background(), "GBPUSD", h1Data("GBPUSD"))
	require.Len(t, out, 1)
	assert.Equal(t, "gbp-momo", out[0].StrategyName)
}

func TestPanickingStrategyDoesNotTakeDownSiblings(t *testing.T) {
	bad := &stubStrategy{panics: true}
	good := &stubStrategy{directive: domain.Directive{Kind: domain.DirectiveExitAll}}
	r, err := NewRunner(Config{
		Instances: []Instance{
			instance("bad", "EURUSD", domain.H1, bad, 1),
			instance("good", "EURUSD", domain.H1, good, 2),
		},
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	out := r.EvaluateSymbol(context.Background(), "EURUSD", h1Data("EURUSD"))
	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].StrategyName)
}

func TestFailingStrategyIsSkipped(t *testing.T) {
	bad := &stubStrategy{err: errors.New("division by zero in indicator")}
	r, err := NewRunner(Config{
		Instances: []Instance{instance("bad", "EURUSD", domain.H1, bad, 1)},
		Logger:    &mockLogger{},
	})
	require.NoError(t, err)

	out := r.EvaluateSymbol(context.Background(), "EURUSD", h1Data("EURUSD"))
	assert.Empty(t, out)
}

func TestMissingTimeframeIsSkipped(t *testing.T) {
	impl := &stubStrategy{directive: domain.Directive{Kind: domain.DirectiveEnter, Direction: domain.Buy}}
	r, err := NewRunner(Config{
		Instances: []Instance{instance("momo-H4", "EURUSD", domain.H4, impl, 1)},
		Logger:    &mockLogger{},
	})
	require.NoError(t, err)

	out := r.EvaluateSymbol(context.Background(), "EURUSD", h1Data("EURUSD"))
	assert.Empty(t, out)
}

func TestNoneDirectivesAreDropped(t *testing.T) {
	impl := &stubStrategy{directive: domain.Directive{Kind: domain.DirectiveNone}}
	r, err := NewRunner(Config{
		Instances: []Instance{instance("quiet", "EURUSD", domain.H1, impl, 1)},
		Logger:    &mockLogger{},
	})
	require.NoError(t, err)

	out := r.EvaluateSymbol(context.Background(), "EURUSD", h1Data("EURUSD"))
	assert.Empty(t, out)
}

func TestNewBuildsKnownKinds(t *testing.T) {
	logger := &mockLogger{}

	impl, err := New(domain.StrategyConfig{Kind: "momentum"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Momentum{}, impl)

	impl, err = New(domain.StrategyConfig{Kind: "ma_crossover"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MACrossover{}, impl)

	_, err = New(domain.StrategyConfig{Kind: "martingale"}, logger)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
