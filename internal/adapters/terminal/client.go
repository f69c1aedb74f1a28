package terminal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

const (
	metadataTTL = 60 * time.Second
	// Maximum market-order price deviation accepted by the terminal, in points.
	priceDeviationPoints = 20
	// Closed-trade queries look back over a fixed trailing window. This is a
	// hard limitation of the client's interface, not a tunable: deals older
	// than 24 hours are simply not reported.
	closedTradeLookback = 24 * time.Hour
)

// Client implements the ports.BrokerClient interface over a BrokerTerminal.
// It owns the connection state machine, the bounded retry policy and the
// symbol-metadata cache; no other component touches that state.
type Client struct {
	term       ports.BrokerTerminal
	logger     ports.Logger
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time

	mu    sync.Mutex
	state domain.ConnectionState

	metaCache *metadataCache
}

// Config holds configuration specific to the broker client.
type Config struct {
	Terminal   ports.BrokerTerminal
	Logger     ports.Logger
	MaxRetries int           // connect attempts before giving up
	RetryDelay time.Duration // fixed delay between attempts
	Now        func() time.Time
}

// New creates a new broker resilience client.
func New(cfg Config) (*Client, error) {
	if cfg.Terminal == nil {
		return nil, fmt.Errorf("broker terminal is required: %w", ports.ErrConfigurationError)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for broker client: %w", ports.ErrConfigurationError)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		term:       cfg.Terminal,
		logger:     cfg.Logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		now:        now,
		state:      domain.Disconnected,
		metaCache:  newMetadataCache(metadataTTL, now),
	}, nil
}

// State returns the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s domain.ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect attempts terminal initialization up to MaxRetries times with a
// fixed delay between attempts. It fails with a connection error after
// exhaustion; the process stays alive.
func (c *Client) Connect(ctx context.Context) error {
	op := "Connect"
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logger.Info(ctx, op+": attempting terminal initialization", map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": c.maxRetries,
		})
		if err := c.term.Initialize(ctx); err == nil {
			c.setState(domain.Connected)
			c.logger.Info(ctx, op+": terminal session established", map[string]interface{}{"attempt": attempt})
			return nil
		} else {
			lastErr = err
			c.logger.Warn(ctx, op+": initialization attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
		}
		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				c.setState(domain.Disconnected)
				return fmt.Errorf("%s canceled: %w: %w", op, ports.ErrContextCanceled, ctx.Err())
			}
		}
	}
	c.setState(domain.Disconnected)
	err := fmt.Errorf("%s failed after %d attempts: %w: %w", op, c.maxRetries, ports.ErrConnectionFailed, lastErr)
	c.logger.Error(ctx, err, op+": giving up")
	return err
}

// Disconnect shuts the terminal session down.
func (c *Client) Disconnect(ctx context.Context) error {
	c.setState(domain.Disconnected)
	if err := c.term.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	c.logger.Info(ctx, "Terminal session closed")
	return nil
}

// ensureConnected verifies the session before every public operation. When
// the state is not Connected (or the terminal stopped responding) it performs
// exactly one reconnect attempt; if that fails the operation fails with a
// connection error rather than silently proceeding.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.State() == domain.Connected && c.term.Alive(ctx) {
		return nil
	}

	c.setState(domain.Reconnecting)
	c.logger.Warn(ctx, "No live terminal session, attempting reconnect")
	if err := c.term.Initialize(ctx); err != nil {
		c.setState(domain.Disconnected)
		return fmt.Errorf("reconnect failed: %w: %w", ports.ErrConnectionFailed, err)
	}
	c.setState(domain.Connected)
	c.logger.Info(ctx, "Terminal session re-established")
	return nil
}

// symbolInfo returns symbol metadata through the TTL cache, making the symbol
// visible in the terminal watch list on first (or refreshed) access. Stale
// entries are never used: past the TTL the terminal is always re-queried.
func (c *Client) symbolInfo(ctx context.Context, symbol string) (domain.SymbolMetadata, error) {
	if meta, ok := c.metaCache.get(symbol); ok {
		return meta, nil
	}

	meta, err := c.term.SymbolInfo(ctx, symbol)
	if err != nil {
		return domain.SymbolMetadata{}, fmt.Errorf("symbol info for %q: %w", symbol, err)
	}
	if !meta.Visible {
		c.logger.Info(ctx, "Symbol not visible, selecting into watch list", map[string]interface{}{"symbol": symbol})
		if err := c.term.SelectSymbol(ctx, symbol); err != nil {
			return domain.SymbolMetadata{}, fmt.Errorf("could not select symbol %q: %w: %w", symbol, ports.ErrData, err)
		}
		meta.Visible = true
	}
	c.metaCache.put(symbol, meta)
	return meta, nil
}

// GetOHLCV fetches a close-time-indexed OHLCV series. The timeframe is
// validated against the terminal allow-list and the range must satisfy
// start < end. An empty range result yields an empty series, not an error.
func (c *Client) GetOHLCV(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) (domain.Series, error) {
	op := "GetOHLCV"
	if !tf.IsValid() {
		return domain.Series{}, fmt.Errorf("%s: timeframe %q not supported: %w", op, tf, ports.ErrData)
	}
	if !start.Before(end) {
		return domain.Series{}, fmt.Errorf("%s: start %s not before end %s: %w", op, start, end, ports.ErrInvalidRange)
	}
	if err := c.ensureConnected(ctx); err != nil {
		return domain.Series{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := c.symbolInfo(ctx, symbol); err != nil {
		return domain.Series{}, fmt.Errorf("%s: %w", op, err)
	}

	klines, err := c.term.CopyRatesRange(ctx, symbol, tf, start, end)
	if err != nil {
		return domain.Series{}, fmt.Errorf("%s for %s %s: %w: %w", op, symbol, tf, ports.ErrData, err)
	}

	series := domain.Series{Symbol: symbol, Timeframe: tf, Klines: klines}
	c.logger.Debug(ctx, op+": fetched series", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": string(tf),
		"bars":      series.Len(),
	})
	return series, nil
}

// normalizeVolume snaps the requested volume to the symbol's volume step and
// checks it against the symbol bounds. Exact decimal arithmetic so a snapped
// volume is always a true multiple of the step.
func normalizeVolume(volume float64, meta domain.SymbolMetadata) (float64, error) {
	if meta.VolumeStep <= 0 {
		return 0, fmt.Errorf("volume step %v not positive: %w", meta.VolumeStep, ports.ErrValidation)
	}
	v := decimal.NewFromFloat(volume)
	step := decimal.NewFromFloat(meta.VolumeStep)
	snapped := v.Div(step).Round(0).Mul(step)

	f, _ := snapped.Float64()
	if f < meta.MinVolume {
		return 0, fmt.Errorf("volume %v below minimum %v: %w", volume, meta.MinVolume, ports.ErrValidation)
	}
	if f > meta.MaxVolume {
		return 0, fmt.Errorf("volume %v above maximum %v: %w", volume, meta.MaxVolume, ports.ErrValidation)
	}
	return f, nil
}

// SendMarketOrder validates the request locally, then submits it. Broker-side
// rejection is reported through OrderResult, never as an error; only local
// validation and connection failures return an error.
//
// CLOSE requests resolve the first open position matching symbol and magic
// number and submit the opposite-direction order against it. With several
// matching positions only the first is closed; a single position per
// (symbol, strategy) is assumed upstream.
func (c *Client) SendMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	op := "SendMarketOrder"
	c.logger.Info(ctx, op+": submitting order", map[string]interface{}{
		"symbol":    req.Symbol,
		"direction": string(req.Direction),
		"volume":    req.Volume,
		"magic":     req.Magic,
	})

	if !req.Direction.IsValid() {
		return domain.OrderResult{}, fmt.Errorf("%s: direction %q: %w", op, req.Direction, ports.ErrValidation)
	}
	if req.Volume <= 0 {
		return domain.OrderResult{}, fmt.Errorf("%s: volume %v must be positive: %w", op, req.Volume, ports.ErrValidation)
	}
	if err := c.ensureConnected(ctx); err != nil {
		return domain.OrderResult{}, fmt.Errorf("%s: %w", op, err)
	}

	meta, err := c.symbolInfo(ctx, req.Symbol)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("%s: %w", op, err)
	}
	volume, err := normalizeVolume(req.Volume, meta)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if volume != req.Volume {
		c.logger.Warn(ctx, op+": volume snapped to step", map[string]interface{}{
			"requested": req.Volume,
			"adjusted":  volume,
			"step":      meta.VolumeStep,
		})
	}

	if req.Direction == domain.Close {
		return c.closePosition(ctx, req, meta)
	}

	tick, err := c.term.SymbolTick(ctx, req.Symbol)
	if err != nil {
		return domain.OrderResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("could not get price for %s: %v", req.Symbol, err),
		}, nil
	}
	price := tick.Ask
	if req.Direction == domain.Sell {
		price = tick.Bid
	}

	result, err := c.term.OrderSend(ctx, ports.TerminalOrder{
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		Volume:       volume,
		Price:        price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		DeviationPts: priceDeviationPoints,
		Magic:        req.Magic,
		Comment:      req.Comment,
		FillPolicy:   meta.PreferredFillPolicy(),
	})
	if err != nil {
		c.logger.Error(ctx, err, op+": order send failed", map[string]interface{}{"symbol": req.Symbol})
		return domain.OrderResult{Success: false, ErrorMessage: err.Error()}, nil
	}
	if result.Rejected {
		c.logger.Warn(ctx, op+": order rejected by broker", map[string]interface{}{
			"symbol": req.Symbol,
			"reason": result.Reason,
		})
		return domain.OrderResult{Success: false, ErrorMessage: result.Reason}, nil
	}

	c.logger.Info(ctx, op+": order executed", map[string]interface{}{
		"symbol":  req.Symbol,
		"orderID": result.OrderID,
		"volume":  volume,
	})
	return domain.OrderResult{Success: true, OrderID: result.OrderID}, nil
}

// closePosition submits the opposite-direction order against the first open
// position matching the request's symbol and magic number.
func (c *Client) closePosition(ctx context.Context, req domain.OrderRequest, meta domain.SymbolMetadata) (domain.OrderResult, error) {
	op := "closePosition"
	positions, err := c.term.PositionsGet(ctx, req.Symbol)
	if err != nil {
		return domain.OrderResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	var target *ports.TerminalPosition
	for i := range positions {
		if req.Magic != 0 && positions[i].Magic != req.Magic {
			continue
		}
		target = &positions[i]
		break
	}
	if target == nil {
		c.logger.Warn(ctx, op+": no open position to close", map[string]interface{}{
			"symbol": req.Symbol,
			"magic":  req.Magic,
		})
		return domain.OrderResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("no open position for %s with magic %d", req.Symbol, req.Magic),
		}, nil
	}

	tick, err := c.term.SymbolTick(ctx, req.Symbol)
	if err != nil {
		return domain.OrderResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("could not get price for %s: %v", req.Symbol, err),
		}, nil
	}
	closeDirection := domain.Sell
	price := tick.Bid
	if target.Direction == domain.Sell {
		closeDirection = domain.Buy
		price = tick.Ask
	}

	comment := req.Comment
	if comment == "" {
		comment = "close position"
	}
	result, err := c.term.OrderSend(ctx, ports.TerminalOrder{
		Symbol:         req.Symbol,
		Direction:      closeDirection,
		Volume:         target.Volume,
		Price:          price,
		DeviationPts:   priceDeviationPoints,
		Magic:          req.Magic,
		Comment:        comment,
		FillPolicy:     meta.PreferredFillPolicy(),
		PositionTicket: target.Ticket,
	})
	if err != nil {
		c.logger.Error(ctx, err, op+": close order failed", map[string]interface{}{"ticket": target.Ticket})
		return domain.OrderResult{Success: false, ErrorMessage: err.Error()}, nil
	}
	if result.Rejected {
		return domain.OrderResult{Success: false, ErrorMessage: result.Reason}, nil
	}

	c.logger.Info(ctx, op+": position closed", map[string]interface{}{
		"ticket":  target.Ticket,
		"orderID": result.OrderID,
	})
	return domain.OrderResult{Success: true, OrderID: result.OrderID}, nil
}

// GetOpenPositions returns the current open positions. No open positions is
// an empty slice, not an error.
func (c *Client) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	op := "GetOpenPositions"
	if err := c.ensureConnected(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := c.term.PositionsGet(ctx, "")
	if err != nil {
		c.logger.Error(ctx, err, op+": position query failed")
		return []domain.Position{}, nil
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, domain.Position{
			Symbol:       p.Symbol,
			Direction:    p.Direction,
			Volume:       p.Volume,
			EntryPrice:   p.EntryPrice,
			StopLoss:     optionalPrice(p.StopLoss),
			TakeProfit:   optionalPrice(p.TakeProfit),
			StrategyName: strategyNameFromComment(p.Comment),
			OpenTime:     p.OpenTime,
			Magic:        p.Magic,
		})
	}
	c.logger.Debug(ctx, op+": positions fetched", map[string]interface{}{"count": len(positions)})
	return positions, nil
}

// GetClosedTrades reconstructs completed round trips from the terminal's deal
// history, pairing each position's opening and closing deal. Unmatched halves
// are discarded. Lookback is limited to the trailing 24 hours; that window is
// an interface limitation of this client, not configurable.
func (c *Client) GetClosedTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	op := "GetClosedTrades"
	if err := c.ensureConnected(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	to := c.now()
	from := to.Add(-closedTradeLookback)
	deals, err := c.term.HistoryDealsGet(ctx, from, to)
	if err != nil {
		c.logger.Error(ctx, err, op+": history query failed")
		return []domain.TradeRecord{}, nil
	}

	trades := pairDeals(deals)
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].ExitTime.After(trades[j].ExitTime)
	})
	c.logger.Debug(ctx, op+": paired trades", map[string]interface{}{
		"deals":  len(deals),
		"trades": len(trades),
	})
	return trades, nil
}

// GetTick returns the current quote for a symbol.
func (c *Client) GetTick(ctx context.Context, symbol string) (ports.Tick, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return ports.Tick{}, err
	}
	tick, err := c.term.SymbolTick(ctx, symbol)
	if err != nil {
		return ports.Tick{}, fmt.Errorf("tick for %q: %w: %w", symbol, ports.ErrData, err)
	}
	return tick, nil
}

// pairDeals groups deals by position and emits one TradeRecord per position
// that has both an opening and a closing deal with exit at or after entry.
func pairDeals(deals []ports.TerminalDeal) []domain.TradeRecord {
	type pair struct {
		in, out *ports.TerminalDeal
	}
	byPosition := make(map[int64]*pair)
	for i := range deals {
		d := &deals[i]
		if d.Entry != ports.DealEntryIn && d.Entry != ports.DealEntryOut {
			continue
		}
		p, ok := byPosition[d.PositionID]
		if !ok {
			p = &pair{}
			byPosition[d.PositionID] = p
		}
		if d.Entry == ports.DealEntryIn {
			p.in = d
		} else {
			p.out = d
		}
	}

	trades := make([]domain.TradeRecord, 0, len(byPosition))
	for _, p := range byPosition {
		if p.in == nil || p.out == nil {
			continue
		}
		if p.out.Time.Before(p.in.Time) {
			continue
		}
		trades = append(trades, domain.TradeRecord{
			Symbol:       p.in.Symbol,
			StrategyName: strategyNameFromComment(p.in.Comment),
			EntryTime:    p.in.Time,
			ExitTime:     p.out.Time,
			EntryPrice:   p.in.Price,
			ExitPrice:    p.out.Price,
			Size:         p.in.Volume,
			PnL:          p.out.Profit,
		})
	}
	return trades
}

// strategyNameFromComment extracts the owning strategy from an order comment
// of the form "<strategy>-<timeframe>". A missing comment maps to "Unknown".
func strategyNameFromComment(comment string) string {
	if comment == "" {
		return "Unknown"
	}
	if idx := strings.LastIndex(comment, "-"); idx > 0 {
		return comment[:idx]
	}
	return comment
}

func optionalPrice(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
