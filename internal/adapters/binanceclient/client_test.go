package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// newTestClient points a client at a fake futures API; routes are matched on path suffix.
func newTestClient(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for suffix, h := range routes {
			if strings.HasSuffix(r.URL.Path, suffix) {
				h(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{APIKey: "k", SecretKey: "s", Logger: nopLogger{}, Timeout: 2 * time.Second, RequestsPerSecond: 100})
	require.NoError(t, err)
	c.futuresClient.BaseURL = srv.URL
	return c
}

func apiError(code int, msg string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"code":%d,"msg":%q}`, code, msg)
	}
}

func jsonBody(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestMapAPIError(t *testing.T) {
	tests := []struct {
		code int64
		want error
	}{
		{-1003, ports.ErrRateLimited},
		{-1021, ports.ErrTimeout},
		{-1111, ports.ErrInvalidRequest},
		{-2010, ports.ErrOrderPlacementFailed},
		{-2011, ports.ErrOrderAlreadyClosed},
		{-2011, ports.ErrOrderCancelFailed},
		{-2013, ports.ErrOrderNotFound},
		{-2015, ports.ErrInvalidAPIKeys},
		{-2019, ports.ErrInsufficientFunds},
		{-4059, ports.ErrConflict},
		{-4164, ports.ErrBelowMinNotional},
		{-9999, ports.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.ErrorIs(t, mapAPIError(tt.code), tt.want)
		})
	}
}

func TestHandleError(t *testing.T) {
	c := &Client{logger: nopLogger{}}
	ctx := context.Background()

	assert.NoError(t, c.handleError(ctx, nil, "op"))

	err := c.handleError(ctx, &common.APIError{Code: -2013, Message: "Order does not exist."}, "GetOrder")
	assert.ErrorIs(t, err, ports.ErrOrderNotFound)
	var apiErr *common.APIError
	assert.True(t, errors.As(err, &apiErr))

	assert.ErrorIs(t, c.handleError(ctx, context.DeadlineExceeded, "op"), ports.ErrTimeout)
	assert.ErrorIs(t, c.handleError(ctx, context.Canceled, "op"), ports.ErrContextCanceled)
	assert.ErrorIs(t, c.handleError(ctx, errors.New("dial tcp: connection refused"), "op"), ports.ErrConnectionFailed)
	assert.ErrorIs(t, c.handleError(ctx, errors.New("boom"), "op"), ports.ErrUnknown)
}

func TestClient_CancelOrderAlreadyClosed(t *testing.T) {
	c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"/order": apiError(-2011, "Unknown order sent."),
	})
	err := c.CancelOrder(context.Background(), "BTCUSDT", 42)
	assert.ErrorIs(t, err, ports.ErrOrderAlreadyClosed)
}

func TestClient_SettingsUnchangedIsSuccess(t *testing.T) {
	c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"/leverage":   apiError(-4048, "Leverage not changed."),
		"/marginType": apiError(-4046, "No need to change margin type."),
	})
	assert.NoError(t, c.SetLeverage(context.Background(), "BTCUSDT", 10))
	assert.NoError(t, c.SetMarginType(context.Background(), "BTCUSDT", domain.MarginIsolated))
}

func TestClient_SetMarginTypeLocked(t *testing.T) {
	c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"/marginType": apiError(-4059, "Margin type cannot be changed if there exists position."),
	})
	err := c.SetMarginType(context.Background(), "BTCUSDT", domain.MarginIsolated)
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestClient_GetPositionRisk(t *testing.T) {
	t.Run("picks the non-zero entry", func(t *testing.T) {
		c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
			"/positionRisk": jsonBody(`[
				{"symbol":"BTCUSDT","positionAmt":"0","entryPrice":"0","markPrice":"100","unRealizedProfit":"0","leverage":"10","positionSide":"BOTH"},
				{"symbol":"BTCUSDT","positionAmt":"-0.5","entryPrice":"101.5","markPrice":"100","unRealizedProfit":"0.75","leverage":"10","positionSide":"BOTH"}
			]`),
		})
		pos, err := c.GetPositionRisk(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.True(t, pos.PositionAmt.Equal(decimal.RequireFromString("-0.5")))
		assert.True(t, pos.EntryPrice.Equal(decimal.RequireFromString("101.5")))
		assert.Equal(t, 10, pos.Leverage)
		dir, ok := pos.Direction()
		assert.True(t, ok)
		assert.Equal(t, domain.Short, dir)
	})

	t.Run("flat is nil", func(t *testing.T) {
		c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
			"/positionRisk": jsonBody(`[{"symbol":"BTCUSDT","positionAmt":"0.000","entryPrice":"0","markPrice":"100","unRealizedProfit":"0","leverage":"10"}]`),
		})
		pos, err := c.GetPositionRisk(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		assert.Nil(t, pos)
	})
}

func TestClient_GetAccountBalance(t *testing.T) {
	c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"/account": jsonBody(`{"assets":[{"asset":"BNB","walletBalance":"1"},{"asset":"USDT","walletBalance":"1234.56"}],"positions":[]}`),
	})
	bal, err := c.GetAccountBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("1234.56")))

	bal, err = c.GetAccountBalance(context.Background(), "BUSD")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestClient_GetInstrumentFiltersCached(t *testing.T) {
	calls := 0
	c := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"/exchangeInfo": func(w http.ResponseWriter, r *http.Request) {
			calls++
			jsonBody(`{"symbols":[{"symbol":"BTCUSDT","filters":[
				{"filterType":"PRICE_FILTER","tickSize":"0.10","minPrice":"0.1","maxPrice":"1000000"},
				{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001","maxQty":"1000"},
				{"filterType":"MIN_NOTIONAL","notional":"100"}
			]}]}`)(w, r)
		},
	})

	f, err := c.GetInstrumentFilters(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, f.PriceTick.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, f.QuantityStep.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, f.MinNotional.Equal(decimal.NewFromInt(100)))

	_, err = c.GetInstrumentFilters(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = c.GetInstrumentFilters(context.Background(), "DOGEUSDT")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
