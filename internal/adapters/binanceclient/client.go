package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Binance error codes with adapter-specific handling.
const (
	codeLeverageNotChanged   int64 = -4048
	codeMarginTypeNotChanged int64 = -4046
	codeMarginTypeLocked     int64 = -4059
	codeCancelRejected       int64 = -2011
)

// Client implements the ports.ExchangeClient interface on the USDⓈ-M futures API.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	limiter       *rate.Limiter
	timeout       time.Duration

	filtersMu sync.RWMutex
	filters   map[string]domain.InstrumentFilters
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	Logger            ports.Logger
	Timeout           time.Duration // per request, default 10s
	RequestsPerSecond float64       // client-side throttle, default 10
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		timeout:       timeout,
		filters:       make(map[string]domain.InstrumentFilters),
	}, nil
}

// call waits for a rate-limit token and bounds the request with the configured timeout.
func (c *Client) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ctx, func() {}, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	return cctx, cancel, nil
}

// mapAPIError maps a Binance error code onto a ports error.
func mapAPIError(code int64) error {
	switch code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1021: // Timestamp outside of recvWindow
		return ports.ErrTimeout
	case -1022: // Invalid signature
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010: // New order rejected
		return ports.ErrOrderPlacementFailed
	case codeCancelRejected: // Unknown order sent; already filled, canceled or expired
		return fmt.Errorf("%w: %w", ports.ErrOrderCancelFailed, ports.ErrOrderAlreadyClosed)
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format invalid / permissions
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -3041, -4047: // Insufficient margin / balance / position
		return ports.ErrInsufficientFunds
	case -2021: // Order would immediately trigger
		return ports.ErrInvalidPrice
	case -2022: // ReduceOnly order rejected
		return ports.ErrOrderPlacementFailed
	case -4003, -4014, -4015, -4028: // Quantity, price or leverage out of range
		return ports.ErrInvalidRequest
	case -4044:
		return ports.ErrPositionNotFound
	case codeMarginTypeLocked: // Margin type cannot be changed with open orders/positions
		return ports.ErrConflict
	case -4164: // Order notional too small
		return ports.ErrBelowMinNotional
	default:
		return ports.ErrUnknown
	}
}

// apiErrorCode reports the Binance error code carried by err, if any.
func apiErrorCode(err error) (int64, bool) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// handleError translates Binance API and transport errors into ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mapAPIError(apiErr.Code), err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// SetServerTime synchronizes the client's time offset with the server.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	if _, err := c.futuresClient.NewSetServerTimeService().Do(cctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	if err := c.futuresClient.NewPingService().Do(cctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// SetLeverage sets the leverage for a specific symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	op := "SetLeverage"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	_, err = c.futuresClient.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(cctx)
	if code, ok := apiErrorCode(err); ok && code == codeLeverageNotChanged {
		c.logger.Debug(ctx, op+": Leverage already set", map[string]interface{}{"symbol": symbol, "leverage": leverage})
		return nil
	}
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "leverage": leverage})
	return nil
}

// SetMarginType sets the margin mode for a specific symbol.
func (c *Client) SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error {
	op := "SetMarginType"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	err = c.futuresClient.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(futures.MarginType(marginType)).
		Do(cctx)
	if code, ok := apiErrorCode(err); ok && code == codeMarginTypeNotChanged {
		c.logger.Debug(ctx, op+": Margin type already set", map[string]interface{}{"symbol": symbol, "marginType": marginType})
		return nil
	}
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "marginType": marginType})
	return nil
}

// GetAccountBalance retrieves the wallet balance for a specific asset (e.g., "USDT").
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	op := "GetAccountBalance"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	account, err := c.futuresClient.NewGetAccountService().Do(cctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Assets {
		if bal.Asset == asset {
			balance, err := decimal.NewFromString(bal.WalletBalance)
			if err != nil {
				parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.WalletBalance, asset, err)
				return decimal.Zero, c.handleError(ctx, parseErr, op)
			}
			return balance, nil
		}
	}

	// An asset never funded is reported as absent.
	c.logger.Warn(ctx, op+": Asset not found in account, treating balance as zero", map[string]interface{}{"asset": asset})
	return decimal.Zero, nil
}

// GetPositionRisk returns the live one-way position for symbol, or nil when flat.
func (c *Client) GetPositionRisk(ctx context.Context, symbol string) (*ports.PositionRisk, error) {
	op := "GetPositionRisk"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	positions, err := c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	for _, p := range positions {
		if p == nil || p.Symbol != symbol {
			continue
		}
		pos, err := translatePositionRisk(p)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if pos.PositionAmt.IsZero() {
			continue
		}
		return pos, nil
	}
	c.logger.Debug(ctx, op+": No open position for symbol", map[string]interface{}{"symbol": symbol})
	return nil, nil
}

// GetMarkPrice retrieves the current mark price for a given symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	op := "GetMarkPrice"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(cctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return decimal.Zero, c.handleError(ctx, fmt.Errorf("no price data returned for symbol %s", symbol), op)
	}

	price, err := decimal.NewFromString(tickers[0].MarkPrice)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].MarkPrice, err)
		return decimal.Zero, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// GetInstrumentFilters returns the trading rules for symbol. Results are cached for the process lifetime.
func (c *Client) GetInstrumentFilters(ctx context.Context, symbol string) (domain.InstrumentFilters, error) {
	op := "GetInstrumentFilters"
	c.filtersMu.RLock()
	f, ok := c.filters[symbol]
	c.filtersMu.RUnlock()
	if ok {
		return f, nil
	}

	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return domain.InstrumentFilters{}, c.handleError(ctx, err, op)
	}
	info, err := c.futuresClient.NewExchangeInfoService().Do(cctx)
	if err != nil {
		return domain.InstrumentFilters{}, c.handleError(ctx, err, op)
	}

	c.filtersMu.Lock()
	defer c.filtersMu.Unlock()
	for i := range info.Symbols {
		s := &info.Symbols[i]
		parsed, err := translateFilters(s)
		if err != nil {
			c.logger.Warn(ctx, op+": Skipping symbol with unparsable filters", map[string]interface{}{"symbol": s.Symbol, "error": err.Error()})
			continue
		}
		c.filters[s.Symbol] = parsed
	}
	f, ok = c.filters[symbol]
	if !ok {
		return domain.InstrumentFilters{}, fmt.Errorf("%s failed: symbol %s: %w", op, symbol, ports.ErrNotFound)
	}
	c.logger.Debug(ctx, op+": Exchange info loaded", map[string]interface{}{
		"symbols": len(c.filters), "symbol": symbol,
		"stepSize": f.QuantityStep.String(), "tickSize": f.PriceTick.String(), "minNotional": f.MinNotional.String(),
	})
	return f, nil
}

// PlaceOrder places a MARKET, LIMIT or STOP_MARKET order.
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	op := "PlaceOrder"
	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(req.Quantity.String()).
		NewClientOrderID(strings.ReplaceAll(uuid.NewString(), "-", "")).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)

	switch req.Type {
	case domain.OrderTypeLimit:
		svc = svc.Price(req.Price.String()).TimeInForce(futures.TimeInForceTypeGTC)
	case domain.OrderTypeStopMarket:
		svc = svc.StopPrice(req.StopPrice.String())
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	fields := map[string]interface{}{
		"symbol": req.Symbol, "side": req.Side, "type": req.Type, "quantity": req.Quantity.String(), "reduceOnly": req.ReduceOnly,
	}
	if !req.Price.IsZero() {
		fields["price"] = req.Price.String()
	}
	if !req.StopPrice.IsZero() {
		fields["stopPrice"] = req.StopPrice.String()
	}

	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	order, err := svc.Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order)
	fields["orderID"] = resp.OrderID
	fields["status"] = resp.Status
	fields["avgPrice"] = resp.AvgPrice.String()
	c.logger.Info(ctx, op+" successful", fields)
	return resp, nil
}

// CancelOrder cancels an open order on Binance.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	op := "CancelOrder"
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	res, err := c.futuresClient.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(cctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": res.Status})
	return nil
}

// GetOrder queries the current state of an order.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	op := "GetOrder"
	cctx, cancel, err := c.call(ctx)
	defer cancel()
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	o, err := c.futuresClient.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(cctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateOrder(o), nil
}

// --- Translation Helpers ---

// parseDecimal treats an empty string as zero.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	return &ports.OrderResponse{
		OrderID:       order.OrderID,
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		Price:         parseDecimal(order.Price),
		AvgPrice:      parseDecimal(order.AvgPrice),
		StopPrice:     parseDecimal(order.StopPrice),
		OrigQuantity:  parseDecimal(order.OrigQuantity),
		ExecutedQty:   parseDecimal(order.ExecutedQuantity),
		Status:        string(order.Status),
		Type:          string(order.Type),
		Side:          string(order.Side),
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

func translateOrder(o *futures.Order) *ports.OrderResponse {
	if o == nil {
		return nil
	}
	return &ports.OrderResponse{
		OrderID:       o.OrderID,
		Symbol:        o.Symbol,
		ClientOrderID: o.ClientOrderID,
		Price:         parseDecimal(o.Price),
		AvgPrice:      parseDecimal(o.AvgPrice),
		StopPrice:     parseDecimal(o.StopPrice),
		OrigQuantity:  parseDecimal(o.OrigQuantity),
		ExecutedQty:   parseDecimal(o.ExecutedQuantity),
		Status:        string(o.Status),
		Type:          string(o.Type),
		Side:          string(o.Side),
		Timestamp:     time.UnixMilli(o.UpdateTime),
	}
}

func translatePositionRisk(pos *futures.PositionRisk) (*ports.PositionRisk, error) {
	amt, err := decimal.NewFromString(pos.PositionAmt)
	if err != nil {
		return nil, fmt.Errorf("could not parse position amount '%s': %w", pos.PositionAmt, err)
	}
	leverage, _ := strconv.Atoi(pos.Leverage)

	return &ports.PositionRisk{
		Symbol:           pos.Symbol,
		PositionAmt:      amt,
		EntryPrice:       parseDecimal(pos.EntryPrice),
		MarkPrice:        parseDecimal(pos.MarkPrice),
		UnRealizedProfit: parseDecimal(pos.UnRealizedProfit),
		Leverage:         leverage,
	}, nil
}

func translateFilters(s *futures.Symbol) (domain.InstrumentFilters, error) {
	var f domain.InstrumentFilters
	if lot := s.LotSizeFilter(); lot != nil {
		step, err := decimal.NewFromString(lot.StepSize)
		if err != nil {
			return f, fmt.Errorf("step size '%s': %w", lot.StepSize, err)
		}
		f.QuantityStep = step
	}
	if pf := s.PriceFilter(); pf != nil {
		tick, err := decimal.NewFromString(pf.TickSize)
		if err != nil {
			return f, fmt.Errorf("tick size '%s': %w", pf.TickSize, err)
		}
		f.PriceTick = tick
	}
	if mn := s.MinNotionalFilter(); mn != nil {
		f.MinNotional = parseDecimal(mn.Notional)
	}
	return f, nil
}
