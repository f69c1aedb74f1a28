package binanceterm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlinesPerRequest = 1500
)

// Client implements the ports.BrokerTerminal contract on top of Binance
// futures, so the bot can run against Binance through the same terminal
// surface it uses for a native broker bridge.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	symbols       []string
}

// Config holds configuration specific to the Binance terminal adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
	// Symbols the adapter reports deal history for. Binance scopes trade
	// history per symbol, so HistoryDealsGet iterates this list.
	Symbols []string
}

// New creates a new Binance terminal adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance terminal: %w", ports.ErrConfigurationError)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance terminal configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"symbols": cfg.Symbols,
	})

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		symbols:       cfg.Symbols,
	}, nil
}

// Initialize verifies connectivity and synchronizes client time with the
// exchange.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("ping failed: %w: %w", ports.ErrConnectionFailed, err)
	}
	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return fmt.Errorf("server time sync failed: %w: %w", ports.ErrConnectionFailed, err)
	}
	c.logger.Debug(ctx, "Binance terminal initialized")
	return nil
}

// Shutdown is a no-op for the REST transport.
func (c *Client) Shutdown(ctx context.Context) error {
	return nil
}

// Alive reports whether the exchange API currently responds.
func (c *Client) Alive(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.futuresClient.NewPingService().Do(pingCtx) == nil
}

// SymbolInfo maps the exchange's lot-size filter onto symbol metadata.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolMetadata, error) {
	info, err := c.futuresClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return domain.SymbolMetadata{}, c.translateError(ctx, err, "SymbolInfo")
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		meta := domain.SymbolMetadata{
			Visible: s.Status == "TRADING",
			// Binance market orders have a single fill behavior; advertise IOC.
			FillModes: 2,
		}
		if f := s.LotSizeFilter(); f != nil {
			meta.MinVolume, _ = strconv.ParseFloat(f.MinQuantity, 64)
			meta.MaxVolume, _ = strconv.ParseFloat(f.MaxQuantity, 64)
			meta.VolumeStep, _ = strconv.ParseFloat(f.StepSize, 64)
		}
		return meta, nil
	}
	return domain.SymbolMetadata{}, fmt.Errorf("symbol %q not listed: %w", symbol, ports.ErrUnknownSymbol)
}

// SelectSymbol is a no-op: every listed symbol is visible on the exchange.
func (c *Client) SelectSymbol(ctx context.Context, symbol string) error {
	return nil
}

// SymbolTick returns the current best bid/ask for a symbol.
func (c *Client) SymbolTick(ctx context.Context, symbol string) (ports.Tick, error) {
	op := "SymbolTick"
	books, err := c.futuresClient.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return ports.Tick{}, c.translateError(ctx, err, op)
	}
	if len(books) == 0 {
		return ports.Tick{}, fmt.Errorf("%s: no quote for %q: %w", op, symbol, ports.ErrData)
	}
	bid, err := strconv.ParseFloat(books[0].BidPrice, 64)
	if err != nil {
		return ports.Tick{}, fmt.Errorf("%s: parsing bid %q: %w", op, books[0].BidPrice, err)
	}
	ask, err := strconv.ParseFloat(books[0].AskPrice, 64)
	if err != nil {
		return ports.Tick{}, fmt.Errorf("%s: parsing ask %q: %w", op, books[0].AskPrice, err)
	}
	return ports.Tick{Bid: bid, Ask: ask, Time: time.Now()}, nil
}

// CopyRatesRange fetches all bars for [start, end), paging through the
// exchange's per-request limit.
func (c *Client) CopyRatesRange(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Kline, error) {
	op := "CopyRatesRange"
	interval, err := timeframeToInterval(tf)
	if err != nil {
		return nil, err
	}

	var all []domain.Kline
	from := start
	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.translateError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			dk, err := translateKline(bk)
			if err != nil {
				return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrData, err)
			}
			all = append(all, dk)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(end) || len(klines) < maxKlinesPerRequest {
			break
		}
	}
	return all, nil
}

// OrderSend submits one market order. Exchange-side rejection is reported in
// the result, not as an error.
func (c *Client) OrderSend(ctx context.Context, order ports.TerminalOrder) (ports.TerminalOrderResult, error) {
	op := "OrderSend"
	side := futures.SideTypeBuy
	if order.Direction == domain.Sell {
		side = futures.SideTypeSell
	}

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(order.Volume, 'f', -1, 64))
	if order.PositionTicket != 0 {
		svc = svc.ReduceOnly(true)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn(ctx, op+": order rejected by exchange", map[string]interface{}{
				"symbol": order.Symbol,
				"code":   apiErr.Code,
				"reason": apiErr.Message,
			})
			return ports.TerminalOrderResult{Rejected: true, Reason: apiErr.Message}, nil
		}
		return ports.TerminalOrderResult{}, c.translateError(ctx, err, op)
	}

	c.logger.Info(ctx, op+": order accepted", map[string]interface{}{
		"symbol":  order.Symbol,
		"orderID": res.OrderID,
	})
	return ports.TerminalOrderResult{OrderID: res.OrderID}, nil
}

// PositionsGet lists open positions. Magic numbers and comments are not
// representable on the exchange side; they come back zero-valued.
func (c *Client) PositionsGet(ctx context.Context, symbol string) ([]ports.TerminalPosition, error) {
	op := "PositionsGet"
	svc := c.futuresClient.NewGetPositionRiskService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	risks, err := svc.Do(ctx)
	if err != nil {
		return nil, c.translateError(ctx, err, op)
	}

	positions := make([]ports.TerminalPosition, 0, len(risks))
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		direction := domain.Buy
		volume := amt
		if amt < 0 {
			direction = domain.Sell
			volume = -amt
		}
		positions = append(positions, ports.TerminalPosition{
			Symbol:     r.Symbol,
			Direction:  direction,
			Volume:     volume,
			EntryPrice: entry,
		})
	}
	return positions, nil
}

// HistoryDealsGet lists executions over [from, to] for the configured
// symbols. Trades with realized PnL map to closing deals, the rest to opening
// deals; the order ID stands in for the position identifier.
func (c *Client) HistoryDealsGet(ctx context.Context, from, to time.Time) ([]ports.TerminalDeal, error) {
	op := "HistoryDealsGet"
	var deals []ports.TerminalDeal
	for _, symbol := range c.symbols {
		trades, err := c.futuresClient.NewListAccountTradeService().
			Symbol(symbol).
			StartTime(from.UnixMilli()).
			EndTime(to.UnixMilli()).
			Do(ctx)
		if err != nil {
			return nil, c.translateError(ctx, err, op)
		}
		for _, t := range trades {
			price, _ := strconv.ParseFloat(t.Price, 64)
			qty, _ := strconv.ParseFloat(t.Quantity, 64)
			pnl, _ := strconv.ParseFloat(t.RealizedPnl, 64)
			entry := ports.DealEntryIn
			if pnl != 0 {
				entry = ports.DealEntryOut
			}
			deals = append(deals, ports.TerminalDeal{
				PositionID: t.OrderID,
				Symbol:     t.Symbol,
				Entry:      entry,
				Price:      price,
				Volume:     qty,
				Profit:     pnl,
				Time:       time.UnixMilli(t.Time),
			})
		}
	}
	return deals, nil
}

// translateError maps transport and API failures onto the standard errors.
func (c *Client) translateError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		c.logger.Error(ctx, err, operation+" failed with API error", fields)
		switch apiErr.Code {
		case -1003:
			return fmt.Errorf("%s: rate limited: %w: %w", operation, ports.ErrData, err)
		case -1121:
			return fmt.Errorf("%s: %w: %w", operation, ports.ErrUnknownSymbol, err)
		default:
			return fmt.Errorf("%s: %w: %w", operation, ports.ErrUnknown, err)
		}
	}

	c.logger.Error(ctx, err, operation+" failed", fields)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", operation, ports.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", operation, ports.ErrContextCanceled, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, ports.ErrConnectionFailed, err)
}

func timeframeToInterval(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.M1:
		return "1m", nil
	case domain.M5:
		return "5m", nil
	case domain.M15:
		return "15m", nil
	case domain.M30:
		return "30m", nil
	case domain.H1:
		return "1h", nil
	case domain.H4:
		return "4h", nil
	case domain.D1:
		return "1d", nil
	case domain.W1:
		return "1w", nil
	case domain.MN1:
		return "1M", nil
	default:
		return "", fmt.Errorf("timeframe %q not supported: %w", tf, ports.ErrData)
	}
}

func translateKline(bk *futures.Kline) (domain.Kline, error) {
	if bk == nil {
		return domain.Kline{}, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Kline{}, fmt.Errorf("parsing open price %q: %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Kline{}, fmt.Errorf("parsing high price %q: %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Kline{}, fmt.Errorf("parsing low price %q: %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Kline{}, fmt.Errorf("parsing close price %q: %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return domain.Kline{}, fmt.Errorf("parsing volume %q: %w", bk.Volume, err)
	}

	return domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
