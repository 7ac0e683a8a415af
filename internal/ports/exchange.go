package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
)

// OrderRequest describes an order to be placed on the exchange.
type OrderRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Type       domain.OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal // LIMIT only
	StopPrice  decimal.Decimal // STOP_MARKET only
	ReduceOnly bool
}

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64           // Exchange's order ID
	Symbol        string          // Symbol for the order
	ClientOrderID string          // User-defined order ID
	Price         decimal.Decimal // Price of the order (zero for market orders)
	AvgPrice      decimal.Decimal // Average filled price, zero while unknown
	StopPrice     decimal.Decimal
	OrigQuantity  decimal.Decimal // Original quantity requested
	ExecutedQty   decimal.Decimal // Quantity filled
	Status        string          // Order status (e.g., NEW, FILLED, CANCELED)
	Type          string          // Order type (e.g., MARKET, LIMIT, STOP_MARKET)
	Side          string          // Order side (BUY, SELL)
	Timestamp     time.Time       // Time the order response was generated
}

// PositionRisk represents the risk details for an open position.
type PositionRisk struct {
	Symbol           string
	PositionAmt      decimal.Decimal // positive for long, negative for short
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	UnRealizedProfit decimal.Decimal
	Leverage         int
}

// Direction of the live position. ok is false when flat.
func (p *PositionRisk) Direction() (domain.Direction, bool) {
	if p == nil {
		return "", false
	}
	return domain.DirectionFromPositionAmount(p.PositionAmt)
}

// ExchangeClient defines the interface for interacting with a futures exchange.
// Implementations bound every call with a timeout and map failures onto the errors in this package.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's time with the server's time.
	SetServerTime(ctx context.Context) error

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// SetLeverage sets the leverage for a symbol. An unchanged value is success.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// SetMarginType sets the margin mode for a symbol. An unchanged mode is success.
	SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error

	// GetAccountBalance retrieves the balance for a specific asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// GetPositionRisk returns the live position for a symbol, or nil when flat.
	GetPositionRisk(ctx context.Context, symbol string) (*PositionRisk, error)

	// GetMarkPrice retrieves the current mark price for a given symbol.
	GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetInstrumentFilters returns the quantity step, price tick and minimum notional for a symbol.
	GetInstrumentFilters(ctx context.Context, symbol string) (domain.InstrumentFilters, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)

	// CancelOrder cancels an open order. ErrOrderAlreadyClosed is returned when the
	// order was already filled, canceled or expired.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	GetOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)
}
