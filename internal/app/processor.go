package app

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
	"signalTrader/internal/risk"
)

// Outcome classifies how a signal was handled.
type Outcome string

const (
	OutcomeOpened   Outcome = "opened"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeOrphaned Outcome = "orphaned"
)

// Result is returned for every processed signal. Err wraps a ports sentinel when
// the outcome is not Opened or Ignored.
type Result struct {
	Outcome Outcome
	Err     error
}

// Succeeded reports whether the signal was handled without an error.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeOpened || r.Outcome == OutcomeIgnored
}

// Order purposes used for metrics labels and logs.
const (
	purposeEntry        = "entry"
	purposeStop         = "stop"
	purposeReversal     = "reversal_close"
	purposeUnmanaged    = "unmanaged_close"
	purposeCompensation = "compensation_close"
)

// ProcessorConfig holds the trading parameters used by the SignalProcessor.
type ProcessorConfig struct {
	QuoteAsset       string
	Leverage         int
	MarginType       domain.MarginType
	EntryOrderType   domain.OrderType
	FillWait         time.Duration // delay between fill-price polls
	FillPollAttempts int
}

// SignalProcessor turns validated signals into protected positions.
// Calls for the same symbol are serialised by the registry's symbol lock.
type SignalProcessor struct {
	cfg      ProcessorConfig
	logger   ports.Logger
	exchange ports.ExchangeClient
	notifier ports.Notifier
	journal  ports.TradeJournal
	registry *registry.Registry
	sizer    *risk.PositionSizer
	metrics  *metrics.Recorder

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewSignalProcessor creates a SignalProcessor. metrics may be nil.
func NewSignalProcessor(
	cfg ProcessorConfig,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	notifier ports.Notifier,
	journal ports.TradeJournal,
	reg *registry.Registry,
	sizer *risk.PositionSizer,
	rec *metrics.Recorder,
) (*SignalProcessor, error) {
	if logger == nil || exchange == nil || notifier == nil || journal == nil || reg == nil || sizer == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for SignalProcessor", ports.ErrConfigurationError)
	}
	if cfg.Leverage <= 0 {
		return nil, fmt.Errorf("%w: leverage must be positive", ports.ErrConfigurationError)
	}
	if cfg.EntryOrderType != domain.OrderTypeMarket && cfg.EntryOrderType != domain.OrderTypeLimit {
		return nil, fmt.Errorf("%w: unsupported entry order type %q", ports.ErrConfigurationError, cfg.EntryOrderType)
	}
	if cfg.FillPollAttempts < 0 {
		cfg.FillPollAttempts = 0
	}
	return &SignalProcessor{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		notifier: notifier,
		journal:  journal,
		registry: reg,
		sizer:    sizer,
		metrics:  rec,
		now:      func() time.Time { return time.Now().UTC() },
		wait:     sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Process runs one signal through reversal handling, sizing, entry and protection.
func (p *SignalProcessor) Process(ctx context.Context, sig domain.Signal) Result {
	op := "Process"
	unlock := p.registry.LockSymbol(sig.Symbol)
	defer unlock()

	fields := map[string]interface{}{
		"signalID":       sig.ID,
		"symbol":         sig.Symbol,
		"direction":      sig.Direction,
		"referencePrice": sig.ReferencePrice.String(),
	}
	p.logger.Info(ctx, op+": Processing signal", fields)

	// 1. Existing bot-owned trade.
	if rec, ok := p.registry.Get(sig.Symbol); ok {
		if rec.Direction == sig.Direction {
			p.logger.Warn(ctx, op+": Signal matches managed trade direction, ignoring", fields)
			return Result{Outcome: OutcomeIgnored}
		}
		if err := p.reverseManaged(ctx, rec, sig); err != nil {
			return Result{Outcome: OutcomeFailed, Err: err}
		}
	}

	// 2. Unmanaged exchange position.
	if res, done := p.handleUnmanaged(ctx, sig); done {
		return res
	}

	// 3. Capacity.
	if open, max := p.registry.Count(), p.sizer.MaxOpenTrades(); open >= max {
		msg := fmt.Sprintf("Maximum open trades (%d) reached. Ignoring %s signal for %s.", max, sig.Direction.Upper(), sig.Symbol)
		p.logger.Warn(ctx, op+": "+msg, fields)
		p.notifier.NotifyInfo(ctx, "⚠️ "+msg)
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("%s: %d open: %w", sig.Symbol, open, ports.ErrCapacityReached)}
	}

	// 4. Per-symbol settings.
	if err := p.applySymbolSettings(ctx, sig.Symbol); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	// 5. Sizing.
	filters, qty, err := p.size(ctx, sig)
	if err != nil {
		outcome := OutcomeFailed
		if isSizingRejection(err) {
			outcome = OutcomeRejected
		}
		return Result{Outcome: outcome, Err: err}
	}

	return p.enter(ctx, sig, filters, qty)
}

// reverseManaged closes the managed trade rec ahead of an opposite signal.
func (p *SignalProcessor) reverseManaged(ctx context.Context, rec domain.TradeRecord, sig domain.Signal) error {
	op := "reverseManaged"
	fields := map[string]interface{}{"symbol": rec.Symbol, "current": rec.Direction, "signal": sig.Direction}
	p.logger.Info(ctx, op+": Opposite signal for managed trade, closing current position", fields)

	pos, err := p.exchange.GetPositionRisk(ctx, rec.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, op+": Failed to query live position", fields)
		p.notifier.NotifyError(ctx, "Position Query Error: "+rec.Symbol, err.Error())
		return fmt.Errorf("query position for reversal of %s: %w", rec.Symbol, err)
	}

	if _, live := pos.Direction(); !live {
		p.logger.Warn(ctx, op+": Managed trade already flat on exchange, dropping record", fields)
		if rec.StopOrderID != 0 {
			_ = p.cancelOrderWarn(ctx, rec.Symbol, rec.StopOrderID, "stop")
		}
		p.registry.Remove(rec.Symbol)
		p.metrics.SetOpenTrades(p.registry.Count())
		closed := rec.Closed(rec.ExitProxy(sig.ReferencePrice), p.now(), domain.CloseReasonStaleRecord, true)
		p.notifier.NotifyClose(ctx, ports.NewCloseNotice(closed))
		p.recordClose(ctx, closed)
		return nil
	}

	order, err := p.closePosition(ctx, rec.Symbol, pos, purposeReversal)
	if err != nil {
		msg := fmt.Sprintf("Failed to close %s %s position on reversal signal. New %s trade will not be opened.",
			rec.Symbol, rec.Direction.Upper(), sig.Direction.Upper())
		p.logger.Error(ctx, err, op+": "+msg, fields)
		p.notifier.NotifyError(ctx, "CRITICAL: Position Close Error: "+rec.Symbol, msg)
		return fmt.Errorf("close %s on reversal: %w", rec.Symbol, err)
	}

	exit, confirmed := p.fillPrice(ctx, rec.Symbol, order, sig.ReferencePrice)
	closed := rec.Closed(exit, p.now(), domain.CloseReasonReversal, !confirmed)
	p.logger.Info(ctx, op+": Managed position closed", map[string]interface{}{
		"symbol": rec.Symbol, "orderID": order.OrderID, "exitPrice": exit.String(), "pnl": closed.PNL.StringFixed(2),
	})
	p.notifier.NotifyClose(ctx, ports.NewCloseNotice(closed))

	if rec.StopOrderID != 0 {
		if err := p.cancelOrderWarn(ctx, rec.Symbol, rec.StopOrderID, "stop"); err != nil {
			p.notifier.NotifyError(ctx, "Stop Cancel Error: "+rec.Symbol,
				fmt.Sprintf("Stop order %d could not be cancelled after close. Manual check may be needed. Error: %v", rec.StopOrderID, err))
		}
	}

	p.registry.Remove(rec.Symbol)
	p.metrics.SetOpenTrades(p.registry.Count())
	p.recordClose(ctx, closed)
	return nil
}

// handleUnmanaged deals with a live position the bot does not own. done is true when
// processing must stop with res.
func (p *SignalProcessor) handleUnmanaged(ctx context.Context, sig domain.Signal) (res Result, done bool) {
	op := "handleUnmanaged"
	pos, err := p.exchange.GetPositionRisk(ctx, sig.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, op+": Failed to query live position", map[string]interface{}{"symbol": sig.Symbol})
		p.notifier.NotifyError(ctx, "Position Query Error: "+sig.Symbol, err.Error())
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("query position for %s: %w", sig.Symbol, err)}, true
	}
	dir, live := pos.Direction()
	if !live {
		return Result{}, false
	}

	fields := map[string]interface{}{"symbol": sig.Symbol, "unmanaged": dir, "amount": pos.PositionAmt.String(), "signal": sig.Direction}
	if dir == sig.Direction {
		msg := fmt.Sprintf("Signal %s for %s matches an existing UNMANAGED position (amount %s). Not opening a duplicate.",
			sig.Direction.Upper(), sig.Symbol, pos.PositionAmt)
		p.logger.Warn(ctx, op+": "+msg, fields)
		p.notifier.NotifyInfo(ctx, "⚠️ Conflict: "+msg)
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("%s unmanaged %s position: %w", sig.Symbol, dir, ports.ErrConflict)}, true
	}

	p.logger.Info(ctx, op+": Closing unmanaged opposite position before entry", fields)
	order, err := p.closePosition(ctx, sig.Symbol, pos, purposeUnmanaged)
	if err != nil {
		msg := fmt.Sprintf("Failed to close unmanaged %s position for %s. New %s trade will not be opened.",
			dir.Upper(), sig.Symbol, sig.Direction.Upper())
		p.logger.Error(ctx, err, op+": "+msg, fields)
		p.notifier.NotifyError(ctx, "CRITICAL: Unmanaged Position Close Error: "+sig.Symbol, msg)
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("close unmanaged %s: %w", sig.Symbol, err)}, true
	}
	p.notifier.NotifyInfo(ctx, fmt.Sprintf("✅ Unmanaged %s position for %s (amount %s) closed due to new %s signal. Close order ID: %d.",
		dir.Upper(), sig.Symbol, pos.PositionAmt, sig.Direction.Upper(), order.OrderID))
	return Result{}, false
}

func (p *SignalProcessor) applySymbolSettings(ctx context.Context, symbol string) error {
	op := "applySymbolSettings"
	if p.registry.SettingsApplied(symbol) {
		return nil
	}
	fields := map[string]interface{}{"symbol": symbol, "leverage": p.cfg.Leverage, "marginType": p.cfg.MarginType}
	p.logger.Info(ctx, op+": Configuring symbol", fields)

	if err := p.exchange.SetLeverage(ctx, symbol, p.cfg.Leverage); err != nil {
		p.logger.Error(ctx, err, op+": Failed to set leverage", fields)
		p.notifier.NotifyError(ctx, "Leverage Error: "+symbol, err.Error())
		return fmt.Errorf("set leverage for %s: %w", symbol, err)
	}
	if err := p.exchange.SetMarginType(ctx, symbol, p.cfg.MarginType); err != nil {
		p.logger.Error(ctx, err, op+": Failed to set margin type", fields)
		p.notifier.NotifyError(ctx, "Margin Type Error: "+symbol, err.Error())
		return fmt.Errorf("set margin type for %s: %w", symbol, err)
	}
	p.registry.MarkSettingsApplied(symbol)
	return nil
}

func (p *SignalProcessor) size(ctx context.Context, sig domain.Signal) (domain.InstrumentFilters, decimal.Decimal, error) {
	op := "size"
	balance, err := p.exchange.GetAccountBalance(ctx, p.cfg.QuoteAsset)
	if err != nil {
		p.logger.Error(ctx, err, op+": Failed to fetch balance", map[string]interface{}{"asset": p.cfg.QuoteAsset})
		p.notifier.NotifyError(ctx, "Balance Error", fmt.Sprintf("Cannot size %s: %s balance unavailable.", sig.Symbol, p.cfg.QuoteAsset))
		return domain.InstrumentFilters{}, decimal.Zero, fmt.Errorf("balance for %s: %w", sig.Symbol, err)
	}
	filters, err := p.exchange.GetInstrumentFilters(ctx, sig.Symbol)
	if err != nil {
		p.logger.Error(ctx, err, op+": Failed to fetch instrument filters", map[string]interface{}{"symbol": sig.Symbol})
		p.notifier.NotifyError(ctx, "Symbol Info Error: "+sig.Symbol, err.Error())
		return domain.InstrumentFilters{}, decimal.Zero, fmt.Errorf("filters for %s: %w", sig.Symbol, err)
	}
	qty, err := p.sizer.Size(sig.Symbol, balance, sig.ReferencePrice, filters)
	if err != nil {
		p.logger.Error(ctx, err, op+": Position sizing failed", map[string]interface{}{
			"symbol": sig.Symbol, "balance": balance.String(), "price": sig.ReferencePrice.String(),
		})
		p.notifier.NotifyError(ctx, "Position Size Error: "+sig.Symbol, err.Error())
		return domain.InstrumentFilters{}, decimal.Zero, err
	}
	p.logger.Info(ctx, op+": Position sized", map[string]interface{}{
		"symbol": sig.Symbol, "balance": balance.String(), "quantity": qty.String(),
	})
	return filters, qty, nil
}

func isSizingRejection(err error) bool {
	return errors.Is(err, ports.ErrInsufficientBalance) ||
		errors.Is(err, ports.ErrZeroQuantity) ||
		errors.Is(err, ports.ErrBelowMinNotional) ||
		errors.Is(err, ports.ErrInvalidPrice)
}

// enter places the entry and the protective stop, then commits the record.
func (p *SignalProcessor) enter(ctx context.Context, sig domain.Signal, filters domain.InstrumentFilters, qty decimal.Decimal) Result {
	op := "enter"
	req := ports.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     sig.Direction.EntrySide(),
		Type:     p.cfg.EntryOrderType,
		Quantity: qty,
	}
	if req.Type == domain.OrderTypeLimit {
		req.Price = domain.TruncateToStep(sig.ReferencePrice, filters.PriceTick)
	}
	fields := map[string]interface{}{
		"symbol": sig.Symbol, "side": req.Side, "type": req.Type, "quantity": qty.String(), "price": req.Price.String(),
	}
	p.logger.Info(ctx, op+": Placing entry order", fields)

	entryOrder, err := p.exchange.PlaceOrder(ctx, req)
	p.metrics.OrderPlaced(sig.Symbol, purposeEntry, err)
	if err != nil {
		p.logger.Error(ctx, err, op+": Failed to place entry order", fields)
		p.notifier.NotifyError(ctx, "Entry Order Error: "+sig.Symbol, err.Error())
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("entry order for %s: %w", sig.Symbol, err)}
	}
	p.logger.Info(ctx, op+": Entry order placed", map[string]interface{}{"symbol": sig.Symbol, "orderID": entryOrder.OrderID})

	fill, _ := p.fillPrice(ctx, sig.Symbol, entryOrder, sig.ReferencePrice)

	rec := domain.TradeRecord{
		Symbol:       sig.Symbol,
		Direction:    sig.Direction,
		Quantity:     qty,
		EntryPrice:   fill,
		EntryOrderID: entryOrder.OrderID,
		ExtremePrice: fill,
		Status:       domain.StatusOpen,
		OpenedAt:     p.now(),
	}

	stopPrice := p.sizer.InitialStopPrice(sig.Direction, fill, filters.PriceTick)
	stopReq := ports.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       sig.Direction.ExitSide(),
		Type:       domain.OrderTypeStopMarket,
		Quantity:   qty,
		StopPrice:  stopPrice,
		ReduceOnly: true,
	}
	p.logger.Info(ctx, op+": Placing protective stop", map[string]interface{}{
		"symbol": sig.Symbol, "fill": fill.String(), "stopPrice": stopPrice.String(),
	})
	stopOrder, err := p.exchange.PlaceOrder(ctx, stopReq)
	p.metrics.OrderPlaced(sig.Symbol, purposeStop, err)
	if err != nil {
		return p.protectionFailed(ctx, rec, err)
	}

	rec.StopOrderID = stopOrder.OrderID
	rec.CurrentStopPrice = stopPrice
	if stopOrder.StopPrice.IsPositive() {
		rec.CurrentStopPrice = stopOrder.StopPrice
	}

	p.registry.Upsert(rec)
	p.metrics.SetOpenTrades(p.registry.Count())
	p.logger.Info(ctx, op+": Trade opened and protected", map[string]interface{}{
		"symbol": rec.Symbol, "direction": rec.Direction, "entryPrice": rec.EntryPrice.String(),
		"quantity": rec.Quantity.String(), "stopOrderID": rec.StopOrderID, "stopPrice": rec.CurrentStopPrice.String(),
	})
	p.notifier.NotifyEntry(ctx, ports.EntryNotice{
		Symbol:     rec.Symbol,
		Direction:  rec.Direction,
		Quantity:   rec.Quantity,
		EntryPrice: rec.EntryPrice,
		StopPrice:  rec.CurrentStopPrice,
	})
	if err := p.journal.RecordOpen(ctx, rec); err != nil {
		p.logger.Error(ctx, err, op+": Failed to journal opened trade", map[string]interface{}{"symbol": rec.Symbol})
	}
	return Result{Outcome: OutcomeOpened}
}

// protectionFailed flattens a position whose stop could not be placed. When that also
// fails the trade is orphaned and handed over to the operator.
func (p *SignalProcessor) protectionFailed(ctx context.Context, rec domain.TradeRecord, stopErr error) Result {
	op := "protectionFailed"
	fields := map[string]interface{}{"symbol": rec.Symbol, "entryOrderID": rec.EntryOrderID}
	msg := fmt.Sprintf("Entry order %d for %s placed but the stop-loss order FAILED. Closing position to reduce risk.", rec.EntryOrderID, rec.Symbol)
	p.logger.Error(ctx, stopErr, op+": "+msg, fields)
	p.notifier.NotifyError(ctx, "CRITICAL: Stop Order Error: "+rec.Symbol, msg)

	compErr := p.compensate(ctx, rec)
	if compErr == nil {
		p.notifier.NotifyInfo(ctx, fmt.Sprintf("ℹ️ Position for %s closed automatically after stop placement failure.", rec.Symbol))
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("%s: %w: %v", rec.Symbol, ports.ErrProtectionFailure, stopErr)}
	}

	rec.Status = domain.StatusOrphaned
	p.registry.Remove(rec.Symbol)
	p.metrics.TradeOrphaned()
	crit := fmt.Sprintf("Position for %s could not be closed after stop failure. MANUAL INTERVENTION REQUIRED. Stop error: %v. Close error: %v",
		rec.Symbol, stopErr, compErr)
	p.logger.Error(ctx, compErr, op+": Trade orphaned", fields)
	p.notifier.NotifyError(ctx, "CRITICAL: Position Live, Stop Failed, Cleanup Failed: "+rec.Symbol, crit)
	if err := p.journal.RecordOrphan(ctx, rec, crit); err != nil {
		p.logger.Error(ctx, err, op+": Failed to journal orphaned trade", fields)
	}
	return Result{
		Outcome: OutcomeOrphaned,
		Err:     fmt.Errorf("%s: %w: stop: %v; close: %v", rec.Symbol, ports.ErrProtectionFailure, stopErr, compErr),
	}
}

// compensate removes the exposure created by rec's entry order.
func (p *SignalProcessor) compensate(ctx context.Context, rec domain.TradeRecord) error {
	op := "compensate"
	if p.cfg.EntryOrderType == domain.OrderTypeLimit {
		// A resting limit entry could fill after the cleanup.
		_ = p.cancelOrderWarn(ctx, rec.Symbol, rec.EntryOrderID, "entry")
	}

	pos, err := p.exchange.GetPositionRisk(ctx, rec.Symbol)
	if err != nil {
		p.logger.Warn(ctx, op+": Position query failed, closing known quantity", map[string]interface{}{
			"symbol": rec.Symbol, "quantity": rec.Quantity.String(), "error": err.Error(),
		})
		amt := rec.Quantity
		if rec.Direction == domain.Short {
			amt = amt.Neg()
		}
		pos = &ports.PositionRisk{Symbol: rec.Symbol, PositionAmt: amt}
	} else if _, live := pos.Direction(); !live {
		p.logger.Info(ctx, op+": No live position to clean up", map[string]interface{}{"symbol": rec.Symbol})
		return nil
	}

	_, err = p.closePosition(ctx, rec.Symbol, pos, purposeCompensation)
	return err
}

// closePosition sends a reduce-only market order for the live signed amount in pos.
func (p *SignalProcessor) closePosition(ctx context.Context, symbol string, pos *ports.PositionRisk, purpose string) (*ports.OrderResponse, error) {
	dir, _ := pos.Direction()
	req := ports.OrderRequest{
		Symbol:     symbol,
		Side:       dir.ExitSide(),
		Type:       domain.OrderTypeMarket,
		Quantity:   pos.PositionAmt.Abs(),
		ReduceOnly: true,
	}
	p.logger.Info(ctx, "closePosition: Placing market close", map[string]interface{}{
		"symbol": symbol, "side": req.Side, "quantity": req.Quantity.String(), "purpose": purpose,
	})
	order, err := p.exchange.PlaceOrder(ctx, req)
	p.metrics.OrderPlaced(symbol, purpose, err)
	return order, err
}

// fillPrice returns the average fill of order, polling the exchange when the
// placement response does not carry one. confirmed is false when fallback is used.
func (p *SignalProcessor) fillPrice(ctx context.Context, symbol string, order *ports.OrderResponse, fallback decimal.Decimal) (price decimal.Decimal, confirmed bool) {
	op := "fillPrice"
	if order.AvgPrice.IsPositive() {
		return order.AvgPrice, true
	}
	status := order.Status
	for i := 0; i < p.cfg.FillPollAttempts; i++ {
		if err := p.wait(ctx, p.cfg.FillWait); err != nil {
			break
		}
		o, err := p.exchange.GetOrder(ctx, symbol, order.OrderID)
		if err != nil {
			p.logger.Warn(ctx, op+": Failed to read back order", map[string]interface{}{
				"symbol": symbol, "orderID": order.OrderID, "attempt": i + 1, "error": err.Error(),
			})
			continue
		}
		if o.AvgPrice.IsPositive() {
			p.logger.Info(ctx, op+": Fill confirmed", map[string]interface{}{
				"symbol": symbol, "orderID": order.OrderID, "avgPrice": o.AvgPrice.String(),
			})
			return o.AvgPrice, true
		}
		status = o.Status
	}
	p.logger.Warn(ctx, op+": Average fill price unavailable, using reference price", map[string]interface{}{
		"symbol": symbol, "orderID": order.OrderID, "status": status, "fallback": fallback.String(),
	})
	return fallback, false
}

// cancelOrderWarn attempts to cancel an order and logs a warning on failure.
// Orders that are already closed or unknown are not errors here.
func (p *SignalProcessor) cancelOrderWarn(ctx context.Context, symbol string, orderID int64, kind string) error {
	op := "cancelOrderWarn"
	fields := map[string]interface{}{"symbol": symbol, "orderID": orderID, "type": kind}
	err := p.exchange.CancelOrder(ctx, symbol, orderID)
	switch {
	case err == nil:
		p.logger.Info(ctx, op+": Order cancelled", fields)
		return nil
	case errors.Is(err, ports.ErrOrderAlreadyClosed), errors.Is(err, ports.ErrOrderNotFound):
		p.logger.Warn(ctx, op+": Order already closed or unknown", fields)
		return nil
	default:
		p.logger.Error(ctx, err, op+": Failed to cancel order", fields)
		return err
	}
}

func (p *SignalProcessor) recordClose(ctx context.Context, t domain.ClosedTrade) {
	if err := p.journal.RecordClose(ctx, t); err != nil {
		p.logger.Error(ctx, err, "recordClose: Failed to journal closed trade", map[string]interface{}{"symbol": t.Symbol})
	}
}
