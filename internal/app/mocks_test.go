package app

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

// Mock implementations

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// orderKey identifies an order kind in mockExchange: "MARKET", "MARKET/reduce", "LIMIT", "STOP_MARKET/reduce".
func orderKey(req ports.OrderRequest) string {
	key := string(req.Type)
	if req.ReduceOnly {
		key += "/reduce"
	}
	return key
}

type mockExchange struct {
	mu sync.Mutex

	serverTimeErr error
	pingErr       error
	leverageErr   error
	marginErr     error
	balance       decimal.Decimal
	balanceErr    error
	filters       domain.InstrumentFilters
	filtersErr    error
	markPrice     decimal.Decimal
	markPriceErr  error

	// positions is consumed one entry per GetPositionRisk call; the last entry repeats.
	positions    []*ports.PositionRisk
	positionErrs []error

	orderErrs  map[string]error
	avgPrices  map[string]decimal.Decimal
	getOrder   *ports.OrderResponse
	getOrdErr  error
	cancelErrs map[int64]error

	nextOrderID    int64
	placed         []ports.OrderRequest
	cancelled      []int64
	positionCalls  int
	leverageCalls  int
	getOrderCalls  int
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		balance: decimal.NewFromInt(10000),
		filters: domain.InstrumentFilters{
			QuantityStep: decimal.RequireFromString("0.01"),
			PriceTick:    decimal.RequireFromString("0.01"),
			MinNotional:  decimal.NewFromInt(5),
		},
		orderErrs:   map[string]error{},
		avgPrices:   map[string]decimal.Decimal{},
		cancelErrs:  map[int64]error{},
		nextOrderID: 100,
	}
}

func (m *mockExchange) SetServerTime(ctx context.Context) error { return m.serverTimeErr }

func (m *mockExchange) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leverageCalls++
	return m.leverageErr
}

func (m *mockExchange) SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error {
	return m.marginErr
}

func (m *mockExchange) GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return m.balance, m.balanceErr
}

func (m *mockExchange) GetPositionRisk(ctx context.Context, symbol string) (*ports.PositionRisk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.positionCalls
	m.positionCalls++
	if i < len(m.positionErrs) && m.positionErrs[i] != nil {
		return nil, m.positionErrs[i]
	}
	if len(m.positions) == 0 {
		return nil, nil
	}
	if i >= len(m.positions) {
		i = len(m.positions) - 1
	}
	return m.positions[i], nil
}

func (m *mockExchange) GetMarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return m.markPrice, m.markPriceErr
}

func (m *mockExchange) GetInstrumentFilters(ctx context.Context, symbol string) (domain.InstrumentFilters, error) {
	return m.filters, m.filtersErr
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)
	key := orderKey(req)
	if err := m.orderErrs[key]; err != nil {
		return nil, err
	}
	m.nextOrderID++
	return &ports.OrderResponse{
		OrderID:      m.nextOrderID,
		Symbol:       req.Symbol,
		AvgPrice:     m.avgPrices[key],
		StopPrice:    req.StopPrice,
		OrigQuantity: req.Quantity,
		Status:       "NEW",
		Type:         string(req.Type),
		Side:         string(req.Side),
	}, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, orderID)
	return m.cancelErrs[orderID]
}

func (m *mockExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrderCalls++
	if m.getOrdErr != nil {
		return nil, m.getOrdErr
	}
	if m.getOrder == nil {
		return nil, ports.ErrOrderNotFound
	}
	return m.getOrder, nil
}

func (m *mockExchange) placedOfKind(key string) []ports.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.OrderRequest
	for _, req := range m.placed {
		if orderKey(req) == key {
			out = append(out, req)
		}
	}
	return out
}

type mockNotifier struct {
	mu      sync.Mutex
	infos   []string
	errors  []string
	entries []ports.EntryNotice
	closes  []ports.CloseNotice
}

func (m *mockNotifier) NotifyInfo(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, text)
}

func (m *mockNotifier) NotifyError(ctx context.Context, title, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, title)
}

func (m *mockNotifier) NotifyEntry(ctx context.Context, n ports.EntryNotice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, n)
}

func (m *mockNotifier) NotifyClose(ctx context.Context, n ports.CloseNotice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, n)
}

type mockJournal struct {
	mu      sync.Mutex
	opened  []domain.TradeRecord
	closed  []domain.ClosedTrade
	orphans []domain.TradeRecord
	err     error
}

func (m *mockJournal) RecordOpen(ctx context.Context, rec domain.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, rec)
	return m.err
}

func (m *mockJournal) RecordClose(ctx context.Context, trade domain.ClosedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, trade)
	return m.err
}

func (m *mockJournal) RecordOrphan(ctx context.Context, rec domain.TradeRecord, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orphans = append(m.orphans, rec)
	return m.err
}

func (m *mockJournal) FindRecent(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	return m.closed, m.err
}

func (m *mockJournal) GetTotalProfit(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range m.closed {
		total = total.Add(t.PNL)
	}
	return total, m.err
}
