package marketdata

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

type providerCall struct {
	symbol string
	tf     domain.Timeframe
	start  time.Time
	end    time.Time
}

type fakeProvider struct {
	calls  []providerCall
	series map[domain.Timeframe]domain.Series
	err    error
}

func (f *fakeProvider) GetOHLCV(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) (domain.Series, error) {
	f.calls = append(f.calls, providerCall{symbol: symbol, tf: tf, start: start, end: end})
	if f.err != nil {
		return domain.Series{}, f.err
	}
	s, ok := f.series[tf]
	if !ok {
		// The broker client always returns an identified series, even when
		// the window holds no bars.
		return domain.Series{Symbol: symbol, Timeframe: tf}, nil
	}
	return s, nil
}

func newTestAssembler(t *testing.T, provider *fakeProvider) *Assembler {
	t.Helper()
	a, err := New(Config{Provider: provider, Logger: &mockLogger{}})
	require.NoError(t, err)
	return a
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{Provider: &fakeProvider{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestAssembleDerivesCoarserFramesFromOneFetch(t *testing.T) {
	now := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		series: map[domain.Timeframe]domain.Series{
			domain.H1: {
				Symbol:    "EURUSD",
				Timeframe: domain.H1,
				Klines:    mkBars(now.Add(-8*time.Hour), 8, time.Hour),
			},
		},
	}
	a := newTestAssembler(t, provider)

	out, err := a.Assemble(context.Background(), "EURUSD", domain.H1,
		[]domain.Timeframe{domain.H1, domain.H4}, now)
	require.NoError(t, err)

	require.Len(t, provider.calls, 1, "derivable frames must not trigger extra fetches")
	assert.Equal(t, domain.H1, provider.calls[0].tf)

	require.Contains(t, out, domain.H4)
	assert.Equal(t, 2, out[domain.H4].Len())
	assert.Equal(t, 8, out[domain.H1].Len())
}

func TestAssembleWindowSizedByBaseTimeframe(t *testing.T) {
	now := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	provider := &fakeProvider{series: map[domain.Timeframe]domain.Series{}}
	a := newTestAssembler(t, provider)

	_, err := a.Assemble(context.Background(), "EURUSD", domain.M15,
		[]domain.Timeframe{domain.M15}, now)
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	call := provider.calls[0]
	assert.Equal(t, now, call.end)
	assert.Equal(t, now.Add(-1000*15*time.Minute), call.start)
}

func TestAssembleEmptyWindowYieldsEmptySeries(t *testing.T) {
	provider := &fakeProvider{series: map[domain.Timeframe]domain.Series{}}
	a := newTestAssembler(t, provider)

	out, err := a.Assemble(context.Background(), "EURUSD", domain.H1,
		[]domain.Timeframe{domain.H1, domain.H4}, time.Now())
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.True(t, out[domain.H1].IsEmpty())
	assert.True(t, out[domain.H4].IsEmpty())
}

func TestAssembleStampsIdentityOnBareProviderResult(t *testing.T) {
	// A provider handing back a zero-value series must not break derivation:
	// the assembler owns the symbol and timeframe identity of the snapshot.
	provider := &fakeProvider{series: map[domain.Timeframe]domain.Series{
		domain.H1: {},
	}}
	a := newTestAssembler(t, provider)

	out, err := a.Assemble(context.Background(), "EURUSD", domain.H1,
		[]domain.Timeframe{domain.H1, domain.H4}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "EURUSD", out[domain.H1].Symbol)
	assert.Equal(t, domain.H1, out[domain.H1].Timeframe)
	assert.Equal(t, domain.H4, out[domain.H4].Timeframe)
	assert.True(t, out[domain.H4].IsEmpty())
}

func TestAssembleNonDerivableFrameFetchedDirectly(t *testing.T) {
	now := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		series: map[domain.Timeframe]domain.Series{
			domain.M5: {Symbol: "EURUSD", Timeframe: domain.M5, Klines: mkBars(now.Add(-time.Hour), 12, 5*time.Minute)},
		},
	}
	a := newTestAssembler(t, provider)

	out, err := a.Assemble(context.Background(), "EURUSD", domain.H1,
		[]domain.Timeframe{domain.M5}, now)
	require.NoError(t, err)

	require.Len(t, provider.calls, 2)
	assert.Equal(t, domain.H1, provider.calls[0].tf)
	assert.Equal(t, domain.M5, provider.calls[1].tf)
	assert.Equal(t, 12, out[domain.M5].Len())
}

func TestAssembleUnknownBaseTimeframe(t *testing.T) {
	a := newTestAssembler(t, &fakeProvider{})

	_, err := a.Assemble(context.Background(), "EURUSD", domain.W1,
		[]domain.Timeframe{domain.W1}, time.Now())
	assert.ErrorIs(t, err, ports.ErrData)
}

func TestAssembleProviderErrorPropagates(t *testing.T) {
	wantErr := errors.New("terminal unavailable")
	a := newTestAssembler(t, &fakeProvider{err: wantErr})

	_, err := a.Assemble(context.Background(), "EURUSD", domain.H1,
		[]domain.Timeframe{domain.H1}, time.Now())
	assert.ErrorIs(t, err, wantErr)
}
