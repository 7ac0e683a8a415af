// Package trailing moves protective stops behind favourable price moves.
package trailing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/metrics"
	"signalTrader/internal/ports"
	"signalTrader/internal/registry"
)

// MinCheckInterval bounds how often the engine polls the exchange.
const MinCheckInterval = 10 * time.Second

// Config holds the trailing-stop parameters.
type Config struct {
	ActivationPercent decimal.Decimal // gain ratio that arms the ratchet
	DistancePercent   decimal.Decimal // stop distance behind the extreme price
	CheckInterval     time.Duration
}

// Engine periodically re-evaluates the protective stop of every managed trade.
type Engine struct {
	cfg      Config
	logger   ports.Logger
	exchange ports.ExchangeClient
	notifier ports.Notifier
	journal  ports.TradeJournal
	registry *registry.Registry
	metrics  *metrics.Recorder
	now      func() time.Time
}

// NewEngine creates an Engine. The check interval is raised to MinCheckInterval if lower.
func NewEngine(
	cfg Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	notifier ports.Notifier,
	journal ports.TradeJournal,
	reg *registry.Registry,
	rec *metrics.Recorder,
) (*Engine, error) {
	if logger == nil || exchange == nil || notifier == nil || journal == nil || reg == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for trailing engine", ports.ErrConfigurationError)
	}
	one := decimal.NewFromInt(1)
	if !cfg.DistancePercent.IsPositive() || !cfg.DistancePercent.LessThan(one) {
		return nil, fmt.Errorf("%w: trailing distance must be in (0, 1), got %s", ports.ErrConfigurationError, cfg.DistancePercent)
	}
	if cfg.ActivationPercent.IsNegative() {
		return nil, fmt.Errorf("%w: trailing activation must not be negative, got %s", ports.ErrConfigurationError, cfg.ActivationPercent)
	}
	if cfg.CheckInterval < MinCheckInterval {
		logger.Warn(context.Background(), "NewEngine: Check interval below minimum, clamping", map[string]interface{}{
			"configured": cfg.CheckInterval.String(), "minimum": MinCheckInterval.String(),
		})
		cfg.CheckInterval = MinCheckInterval
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		notifier: notifier,
		journal:  journal,
		registry: reg,
		metrics:  rec,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Interval is the effective check interval.
func (e *Engine) Interval() time.Duration {
	return e.cfg.CheckInterval
}

// Run executes a cycle every check interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info(ctx, "Trailing stop engine started", map[string]interface{}{
		"interval":   e.cfg.CheckInterval.String(),
		"activation": e.cfg.ActivationPercent.String(),
		"distance":   e.cfg.DistancePercent.String(),
	})
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "Trailing stop engine stopped")
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle evaluates every managed symbol once. Symbols whose operation lock is
// held by signal processing are skipped until the next cycle.
func (e *Engine) RunCycle(ctx context.Context) {
	start := time.Now()
	symbols := e.registry.SnapshotSymbols()
	e.logger.Debug(ctx, "RunCycle: Checking trailing stops", map[string]interface{}{"trades": len(symbols)})

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		e.checkSymbol(ctx, symbol)
	}

	e.metrics.SetOpenTrades(e.registry.Count())
	e.metrics.ObserveCycle(time.Since(start))
}

func (e *Engine) checkSymbol(ctx context.Context, symbol string) {
	op := "checkSymbol"
	unlock, ok := e.registry.TryLockSymbol(symbol)
	if !ok {
		e.logger.Debug(ctx, op+": Symbol busy, skipping this cycle", map[string]interface{}{"symbol": symbol})
		return
	}
	defer unlock()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, fmt.Errorf("panic: %v", r), op+": Recovered while managing trailing stop", map[string]interface{}{"symbol": symbol})
		}
	}()

	rec, ok := e.registry.Get(symbol)
	if !ok || !rec.IsOpen() {
		return
	}
	fields := map[string]interface{}{"symbol": symbol}

	pos, err := e.exchange.GetPositionRisk(ctx, symbol)
	if err != nil {
		e.logger.Warn(ctx, op+": Position query failed, retrying next cycle", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return
	}
	dir, live := pos.Direction()
	if !live || dir != rec.Direction {
		if live {
			e.logger.Warn(ctx, op+": Live position direction differs from managed trade", map[string]interface{}{
				"symbol": symbol, "managed": rec.Direction, "live": dir,
			})
		}
		e.closedByExchange(ctx, rec)
		return
	}

	mark := pos.MarkPrice
	if !mark.IsPositive() {
		if mark, err = e.exchange.GetMarkPrice(ctx, symbol); err != nil || !mark.IsPositive() {
			e.logger.Warn(ctx, op+": Mark price unavailable, skipping", fields)
			return
		}
	}
	rec.LastMarkPrice = mark
	rec.LastUnrealizedPnL = pos.UnRealizedProfit

	wasActive := rec.TrailingActive
	candidate, ok := e.advance(&rec, mark)
	e.registry.Upsert(rec)
	if rec.TrailingActive && !wasActive {
		msg := fmt.Sprintf("✅ Trailing stop armed for %s. Mark: %s, gain: %s%%, threshold: %s%%",
			symbol, mark, GainRatio(rec.Direction, rec.EntryPrice, mark).Shift(2).StringFixed(2),
			e.cfg.ActivationPercent.Shift(2).StringFixed(2))
		e.logger.Info(ctx, op+": "+msg, fields)
		e.notifier.NotifyInfo(ctx, msg)
	}
	if !ok {
		return
	}

	filters, err := e.exchange.GetInstrumentFilters(ctx, symbol)
	if err != nil {
		e.logger.Warn(ctx, op+": Instrument filters unavailable, skipping", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return
	}
	rounded := domain.TruncateToStep(candidate, filters.PriceTick)
	if !Acceptable(rec, rounded, mark) {
		e.logger.Debug(ctx, op+": Rounded stop not acceptable", map[string]interface{}{
			"symbol": symbol, "candidate": candidate.String(), "rounded": rounded.String(), "mark": mark.String(),
		})
		return
	}
	if immaterial(rounded, rec.CurrentStopPrice, filters.PriceTick) {
		e.logger.Debug(ctx, op+": Stop move below one tick, skipping", map[string]interface{}{
			"symbol": symbol, "current": rec.CurrentStopPrice.String(), "rounded": rounded.String(),
		})
		return
	}

	e.replaceStop(ctx, rec, rounded)
}

// advance applies activation and ratchet updates to rec for the observed mark and
// returns the candidate stop when it passes the acceptance test.
func (e *Engine) advance(rec *domain.TradeRecord, mark decimal.Decimal) (decimal.Decimal, bool) {
	if !rec.TrailingActive {
		if !GainRatio(rec.Direction, rec.EntryPrice, mark).GreaterThan(e.cfg.ActivationPercent) {
			return decimal.Zero, false
		}
		rec.TrailingActive = true
		rec.ExtremePrice = mark
	} else if rec.Direction == domain.Long && mark.GreaterThan(rec.ExtremePrice) {
		rec.ExtremePrice = mark
	} else if rec.Direction == domain.Short && mark.LessThan(rec.ExtremePrice) {
		rec.ExtremePrice = mark
	}

	one := decimal.NewFromInt(1)
	var candidate decimal.Decimal
	if rec.Direction == domain.Long {
		candidate = rec.ExtremePrice.Mul(one.Sub(e.cfg.DistancePercent))
	} else {
		candidate = rec.ExtremePrice.Mul(one.Add(e.cfg.DistancePercent))
	}
	if !Acceptable(*rec, candidate, mark) {
		return decimal.Zero, false
	}
	return candidate, true
}

// GainRatio is the unrealized gain of a position relative to its entry price.
func GainRatio(dir domain.Direction, entry, mark decimal.Decimal) decimal.Decimal {
	if !entry.IsPositive() {
		return decimal.Zero
	}
	if dir == domain.Short {
		return entry.Sub(mark).Div(entry)
	}
	return mark.Sub(entry).Div(entry)
}

// Acceptable reports whether stop may replace rec's current stop: it must tighten the
// current stop, lock in profit beyond the entry and sit on the protective side of mark.
func Acceptable(rec domain.TradeRecord, stop, mark decimal.Decimal) bool {
	if rec.Direction == domain.Long {
		return stop.GreaterThan(rec.CurrentStopPrice) &&
			stop.GreaterThan(rec.EntryPrice) &&
			stop.LessThan(mark)
	}
	return (rec.CurrentStopPrice.IsZero() || stop.LessThan(rec.CurrentStopPrice)) &&
		stop.LessThan(rec.EntryPrice) &&
		stop.GreaterThan(mark)
}

func immaterial(next, current, tick decimal.Decimal) bool {
	if !tick.IsPositive() {
		return next.Equal(current)
	}
	return next.Sub(current).Abs().LessThan(tick)
}

// replaceStop cancels rec's stop and places a new one at price.
func (e *Engine) replaceStop(ctx context.Context, rec domain.TradeRecord, price decimal.Decimal) {
	op := "replaceStop"
	fields := map[string]interface{}{
		"symbol": rec.Symbol, "oldOrderID": rec.StopOrderID,
		"oldStop": rec.CurrentStopPrice.String(), "newStop": price.String(),
	}
	e.logger.Info(ctx, op+": Moving trailing stop", fields)

	if err := e.exchange.CancelOrder(ctx, rec.Symbol, rec.StopOrderID); err != nil {
		if errors.Is(err, ports.ErrOrderAlreadyClosed) || errors.Is(err, ports.ErrOrderNotFound) {
			e.stopAlreadyGone(ctx, rec)
			return
		}
		e.logger.Warn(ctx, op+": Failed to cancel old stop, retrying next cycle", map[string]interface{}{
			"symbol": rec.Symbol, "orderID": rec.StopOrderID, "error": err.Error(),
		})
		return
	}

	order, err := e.exchange.PlaceOrder(ctx, ports.OrderRequest{
		Symbol:     rec.Symbol,
		Side:       rec.Direction.ExitSide(),
		Type:       domain.OrderTypeStopMarket,
		Quantity:   rec.Quantity,
		StopPrice:  price,
		ReduceOnly: true,
	})
	e.metrics.OrderPlaced(rec.Symbol, "trailing_stop", err)
	if err != nil {
		e.orphan(ctx, rec, price, err)
		return
	}

	rec.StopOrderID = order.OrderID
	rec.CurrentStopPrice = price
	e.registry.Upsert(rec)
	e.metrics.StopReplaced()
	e.logger.Info(ctx, op+": Trailing stop updated", map[string]interface{}{
		"symbol": rec.Symbol, "orderID": order.OrderID, "stopPrice": price.String(),
	})
	e.notifier.NotifyInfo(ctx, fmt.Sprintf("⚙️ Trailing SL Updated for %s\nNew SL Price: %s", rec.Symbol, price))
}

// closedByExchange removes a trade whose position is no longer live.
func (e *Engine) closedByExchange(ctx context.Context, rec domain.TradeRecord) {
	op := "closedByExchange"
	var mark decimal.Decimal
	if !rec.LastMarkPrice.IsPositive() {
		m, err := e.exchange.GetMarkPrice(ctx, rec.Symbol)
		if err != nil {
			e.logger.Warn(ctx, op+": Mark price unavailable, estimating exit at entry", map[string]interface{}{"symbol": rec.Symbol, "error": err.Error()})
		} else {
			mark = m
		}
	}
	exit := rec.ExitProxy(mark)

	if rec.StopOrderID != 0 {
		err := e.exchange.CancelOrder(ctx, rec.Symbol, rec.StopOrderID)
		if err != nil && !errors.Is(err, ports.ErrOrderAlreadyClosed) && !errors.Is(err, ports.ErrOrderNotFound) {
			e.logger.Warn(ctx, op+": Failed to cancel leftover stop", map[string]interface{}{
				"symbol": rec.Symbol, "orderID": rec.StopOrderID, "error": err.Error(),
			})
		}
	}

	e.registry.Remove(rec.Symbol)
	e.metrics.ClosedByExchange()
	closed := rec.Closed(exit, e.now(), domain.CloseReasonClosedOnExchange, true)
	e.logger.Info(ctx, op+": Position closed on exchange, removed from management", map[string]interface{}{
		"symbol": rec.Symbol, "exitEstimate": exit.String(), "pnlEstimate": closed.PNL.StringFixed(2),
	})
	e.notifier.NotifyClose(ctx, ports.NewCloseNotice(closed))
	if err := e.journal.RecordClose(ctx, closed); err != nil {
		e.logger.Error(ctx, err, op+": Failed to journal closed trade", map[string]interface{}{"symbol": rec.Symbol})
	}
}

// stopAlreadyGone handles a stop that was filled or cancelled before it could be replaced.
func (e *Engine) stopAlreadyGone(ctx context.Context, rec domain.TradeRecord) {
	op := "stopAlreadyGone"
	e.registry.Remove(rec.Symbol)
	closed := rec.Closed(rec.CurrentStopPrice, e.now(), domain.CloseReasonStopAlreadyGone, true)
	e.logger.Info(ctx, op+": Old stop already filled or cancelled, removed from management", map[string]interface{}{
		"symbol": rec.Symbol, "orderID": rec.StopOrderID,
	})
	e.notifier.NotifyClose(ctx, ports.NewCloseNotice(closed))
	if err := e.journal.RecordClose(ctx, closed); err != nil {
		e.logger.Error(ctx, err, op+": Failed to journal closed trade", map[string]interface{}{"symbol": rec.Symbol})
	}
}

// orphan evicts a trade left without a protective order.
func (e *Engine) orphan(ctx context.Context, rec domain.TradeRecord, price decimal.Decimal, placeErr error) {
	op := "orphan"
	rec.Status = domain.StatusOrphaned
	rec.StopOrderID = 0
	e.registry.Remove(rec.Symbol)
	e.metrics.TradeOrphaned()

	detail := fmt.Sprintf("Old stop cancelled, new trailing stop FAILED. POSITION UNPROTECTED. Attempted stop: %s. Manual intervention required! Error: %v",
		price, placeErr)
	e.logger.Error(ctx, placeErr, op+": "+detail, map[string]interface{}{"symbol": rec.Symbol})
	e.notifier.NotifyError(ctx, "CRITICAL TSL Error: "+rec.Symbol, detail)
	if err := e.journal.RecordOrphan(ctx, rec, detail); err != nil {
		e.logger.Error(ctx, err, op+": Failed to journal orphaned trade", map[string]interface{}{"symbol": rec.Symbol})
	}
}
