package marketdata

import (
	"context"
	"fmt"
	"time"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

// adaptiveWindows sets how many bars of the base timeframe one assembly
// fetches. Finer frames need deeper history in bar count to cover the same
// indicator warm-up that coarser frames get cheaply.
var adaptiveWindows = map[domain.Timeframe]int{
	domain.M1:  1440,
	domain.M5:  1440,
	domain.M15: 1000,
	domain.M30: 800,
	domain.H1:  500,
	domain.H4:  300,
	domain.D1:  250,
}

// OHLCVProvider is the slice of the broker client the assembler needs.
type OHLCVProvider interface {
	GetOHLCV(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) (domain.Series, error)
}

// Assembler produces the per-cycle market data snapshot for one symbol. It
// fetches the base timeframe once and derives every coarser required
// timeframe from that single fetch, so a cycle needing H1 and H4 off an H1
// base costs exactly one provider call.
type Assembler struct {
	provider OHLCVProvider
	logger   ports.Logger
}

// Config holds configuration for the market data assembler.
type Config struct {
	Provider OHLCVProvider
	Logger   ports.Logger
}

// New creates a market data assembler.
func New(cfg Config) (*Assembler, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required for assembler: %w", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for assembler: %w", ports.ErrConfigurationError)
	}
	return &Assembler{provider: cfg.Provider, logger: cfg.Logger}, nil
}

// Assemble returns one series per required timeframe for the symbol, ending
// at now. The lookback window is sized by the base timeframe's adaptive bar
// count. When the broker has no bars for the window, every returned series is
// empty rather than absent; the caller decides what that means.
func (a *Assembler) Assemble(ctx context.Context, symbol string, base domain.Timeframe, required []domain.Timeframe, now time.Time) (map[domain.Timeframe]domain.Series, error) {
	op := "Assemble"

	bars, ok := adaptiveWindows[base]
	if !ok {
		return nil, fmt.Errorf("%s: no window defined for base timeframe %q: %w", op, base, ports.ErrData)
	}
	baseDur, _ := base.Duration()
	end := now.UTC()
	start := end.Add(-time.Duration(bars) * baseDur)

	baseSeries, err := a.provider.GetOHLCV(ctx, symbol, base, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: fetching %s %s: %w", op, symbol, base, err)
	}
	// Stamp the identity fields so an empty result still resamples and maps
	// cleanly; a no-data window must yield empty series, never an error.
	baseSeries.Symbol = symbol
	baseSeries.Timeframe = base
	if baseSeries.IsEmpty() {
		a.logger.Warn(ctx, op+": broker returned no bars for window", map[string]interface{}{
			"symbol": symbol, "timeframe": base, "start": start, "end": end,
		})
	}

	result := make(map[domain.Timeframe]domain.Series, len(required))
	for _, tf := range required {
		switch {
		case tf == base:
			result[tf] = baseSeries
		case tf.DerivableFrom(base):
			derived, err := Resample(baseSeries, tf)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			result[tf] = derived
		default:
			// Finer than the base, or without a fixed duration; the only
			// option is a dedicated fetch over the same window.
			a.logger.Debug(ctx, op+": timeframe not derivable from base, fetching directly", map[string]interface{}{
				"symbol": symbol, "base": base, "timeframe": tf,
			})
			s, err := a.provider.GetOHLCV(ctx, symbol, tf, start, end)
			if err != nil {
				return nil, fmt.Errorf("%s: fetching %s %s: %w", op, symbol, tf, err)
			}
			s.Symbol = symbol
			s.Timeframe = tf
			result[tf] = s
		}
	}

	a.logger.Debug(ctx, op+": snapshot assembled", map[string]interface{}{
		"symbol":   symbol,
		"base":     base,
		"baseBars": baseSeries.Len(),
		"frames":   len(result),
	})
	return result, nil
}
