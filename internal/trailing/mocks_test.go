package trailing

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeExchange serves one position per symbol; tests change it between cycles.
type fakeExchange struct {
	mu sync.Mutex

	positions   map[string]*ports.PositionRisk
	positionErr error
	markPrice   decimal.Decimal
	filters     domain.InstrumentFilters
	cancelErr   error
	placeErr    error

	nextOrderID int64
	placed      []ports.OrderRequest
	cancelled   []int64
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		positions:   map[string]*ports.PositionRisk{},
		filters:     domain.InstrumentFilters{QuantityStep: d("0.01"), PriceTick: d("0.01"), MinNotional: d("5")},
		nextOrderID: 500,
	}
}

func (f *fakeExchange) setMark(symbol, amount, mark string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[symbol] = &ports.PositionRisk{Symbol: symbol, PositionAmt: d(amount), MarkPrice: d(mark)}
}

func (f *fakeExchange) SetServerTime(ctx context.Context) error { return nil }
func (f *fakeExchange) Ping(ctx context.Context) error          { return nil }
func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (f *fakeExchange) SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error {
	return nil
}
func (f *fakeExchange) GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeExchange) GetPositionRisk(ctx context.Context, symbol string) (*ports.PositionRisk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionErr != nil {
		return nil, f.positionErr
	}
	return f.positions[symbol], nil
}

func (f *fakeExchange) GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !f.markPrice.IsPositive() {
		return decimal.Zero, ports.ErrExchangeUnavailable
	}
	return f.markPrice, nil
}

func (f *fakeExchange) GetInstrumentFilters(ctx context.Context, symbol string) (domain.InstrumentFilters, error) {
	return f.filters, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.nextOrderID++
	return &ports.OrderResponse{OrderID: f.nextOrderID, Symbol: req.Symbol, StopPrice: req.StopPrice, Status: "NEW"}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErr
}

func (f *fakeExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	return nil, ports.ErrOrderNotFound
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	closes []ports.CloseNotice
}

func (n *fakeNotifier) NotifyInfo(ctx context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, text)
}

func (n *fakeNotifier) NotifyError(ctx context.Context, title, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, title)
}

func (n *fakeNotifier) NotifyEntry(ctx context.Context, e ports.EntryNotice) {}

func (n *fakeNotifier) NotifyClose(ctx context.Context, c ports.CloseNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closes = append(n.closes, c)
}

type fakeJournal struct {
	closed  []domain.ClosedTrade
	orphans []domain.TradeRecord
}

func (j *fakeJournal) RecordOpen(ctx context.Context, rec domain.TradeRecord) error { return nil }

func (j *fakeJournal) RecordClose(ctx context.Context, trade domain.ClosedTrade) error {
	j.closed = append(j.closed, trade)
	return nil
}

func (j *fakeJournal) RecordOrphan(ctx context.Context, rec domain.TradeRecord, reason string) error {
	j.orphans = append(j.orphans, rec)
	return nil
}

func (j *fakeJournal) FindRecent(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	return j.closed, nil
}

func (j *fakeJournal) GetTotalProfit(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
