package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"signalTrader/internal/app"
	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

// SignalSubmitter hands a validated signal to the processing queue.
type SignalSubmitter interface {
	Submit(ctx context.Context, sig domain.Signal) (app.Result, error)
}

// TradeLister exposes the currently managed trades.
type TradeLister interface {
	Snapshot() []domain.TradeRecord
}

// Handler serves the signal intake and the operational endpoints.
type Handler struct {
	rules      Rules
	submitter  SignalSubmitter
	trades     TradeLister
	journal    ports.TradeJournal
	logger     ports.Logger
	gatherer   prometheus.Gatherer
	maxPending time.Duration
	now        func() time.Time
}

// Config holds the Handler dependencies. Gatherer and Journal may be nil.
type Config struct {
	Rules     Rules
	Submitter SignalSubmitter
	Trades    TradeLister
	Journal   ports.TradeJournal
	Logger    ports.Logger
	Gatherer  prometheus.Gatherer
	// MaxWait bounds how long a request waits for its signal to be processed.
	MaxWait time.Duration
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 2 * time.Minute
	}
	return &Handler{
		rules:      cfg.Rules,
		submitter:  cfg.Submitter,
		trades:     cfg.Trades,
		journal:    cfg.Journal,
		logger:     cfg.Logger,
		gatherer:   cfg.Gatherer,
		maxPending: maxWait,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.POST("/webhook", h.Webhook)
	r.GET("/status", h.Status)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// requestLogger logs every request; 4xx/5xx at warn level.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			h.logger.Warn(c.Request.Context(), "HTTP request", fields)
			return
		}
		h.logger.Debug(c.Request.Context(), "HTTP request", fields)
	}
}

func errorResponse(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "message": msg})
}

// Webhook validates an alert and waits for the processing outcome.
// POST /webhook
func (h *Handler) Webhook(c *gin.Context) {
	op := "Webhook"
	ctx := c.Request.Context()

	var p Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		h.logger.Warn(ctx, op+": Invalid JSON payload", map[string]interface{}{"error": err.Error()})
		errorResponse(c, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	sig, warnings, err := h.rules.Validate(p, h.now())
	if err != nil {
		h.logger.Warn(ctx, op+": Rejected payload", map[string]interface{}{"error": err.Error()})
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, w := range warnings {
		h.logger.Warn(ctx, op+": "+w, map[string]interface{}{"symbol": sig.Symbol})
	}
	h.logger.Info(ctx, op+": Webhook validated", map[string]interface{}{
		"signalID": sig.ID, "symbol": sig.Symbol, "direction": sig.Direction, "price": sig.ReferencePrice.String(),
	})

	wctx, cancel := context.WithTimeout(ctx, h.maxPending)
	defer cancel()
	res, err := h.submitter.Submit(wctx, sig)
	switch {
	case errors.Is(err, ports.ErrQueueFull):
		errorResponse(c, http.StatusServiceUnavailable, "signal queue is full, retry later")
		return
	case err != nil:
		// The signal stays queued; only the wait was abandoned.
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "signal_id": sig.ID})
		return
	}

	if res.Succeeded() {
		c.JSON(http.StatusOK, gin.H{"status": "success", "signal_id": sig.ID, "outcome": res.Outcome})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "rejected", "signal_id": sig.ID, "outcome": res.Outcome})
}

type tradeView struct {
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	Quantity       string    `json:"quantity"`
	EntryPrice     string    `json:"entry_price"`
	StopPrice      string    `json:"stop_price"`
	StopOrderID    int64     `json:"stop_order_id"`
	TrailingActive bool      `json:"trailing_active"`
	ExtremePrice   string    `json:"extreme_price,omitempty"`
	MarkPrice      string    `json:"mark_price,omitempty"`
	UnrealizedPnL  string    `json:"unrealized_pnl,omitempty"`
	OpenedAt       time.Time `json:"opened_at"`
}

func optional(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

// Status reports managed trades and realized P&L.
// GET /status
func (h *Handler) Status(c *gin.Context) {
	recs := h.trades.Snapshot()
	views := make([]tradeView, 0, len(recs))
	for _, r := range recs {
		views = append(views, tradeView{
			Symbol:         r.Symbol,
			Direction:      string(r.Direction),
			Quantity:       r.Quantity.String(),
			EntryPrice:     r.EntryPrice.String(),
			StopPrice:      r.CurrentStopPrice.String(),
			StopOrderID:    r.StopOrderID,
			TrailingActive: r.TrailingActive,
			ExtremePrice:   optional(r.ExtremePrice),
			MarkPrice:      optional(r.LastMarkPrice),
			UnrealizedPnL:  optional(r.LastUnrealizedPnL),
			OpenedAt:       r.OpenedAt,
		})
	}

	resp := gin.H{"open_trades": len(views), "trades": views}
	if h.journal != nil {
		total, err := h.journal.GetTotalProfit(c.Request.Context())
		if err != nil {
			h.logger.Error(c.Request.Context(), err, "Status: Failed to read realized P&L")
		} else {
			resp["realized_pnl"] = total.String()
		}
	}
	c.JSON(http.StatusOK, resp)
}
