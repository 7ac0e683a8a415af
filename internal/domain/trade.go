package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is a position owned by this process, together with its protective order.
// Quantity is fixed for the lifetime of the record.
type TradeRecord struct {
	Symbol           string
	Direction        Direction
	Quantity         decimal.Decimal
	EntryPrice       decimal.Decimal
	EntryOrderID     int64
	StopOrderID      int64
	CurrentStopPrice decimal.Decimal
	TrailingActive   bool
	ExtremePrice     decimal.Decimal // highest (Long) / lowest (Short) price since activation
	Status           TradeStatus
	OpenedAt         time.Time

	// Last observation made by the trailing engine; zero until the first cycle.
	LastMarkPrice     decimal.Decimal
	LastUnrealizedPnL decimal.Decimal
}

// IsOpen checks if the record is actively managed.
func (t *TradeRecord) IsOpen() bool {
	return t.Status == StatusOpen
}

// ClosedTrade represents a trade that left active management.
type ClosedTrade struct {
	Symbol       string
	Direction    Direction
	EntryOrderID int64
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	Quantity     decimal.Decimal
	PNL          decimal.Decimal
	EntryTime    time.Time
	ExitTime     time.Time
	CloseReason  CloseReason
	// Estimated is set when the exit price is a proxy (mark price, reference price) rather than a fill.
	Estimated bool
}

// RealizedPnL computes profit for a position closed at exit.
func RealizedPnL(dir Direction, entry, exit, qty decimal.Decimal) decimal.Decimal {
	qty = qty.Abs()
	if dir == Short {
		return entry.Sub(exit).Mul(qty)
	}
	return exit.Sub(entry).Mul(qty)
}

// Signal is a validated trading instruction coming from the intake.
type Signal struct {
	ID             string
	Symbol         string
	Direction      Direction
	ReferencePrice decimal.Decimal
	ReceivedAt     time.Time
}

// InstrumentFilters are the exchange trading rules for a symbol.
type InstrumentFilters struct {
	QuantityStep decimal.Decimal
	PriceTick    decimal.Decimal
	MinNotional  decimal.Decimal
}

// TruncateToStep rounds v toward zero to a multiple of step.
// A non-positive step leaves v unchanged.
func TruncateToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Sub(v.Mod(step))
}

// ExitProxy is the best available estimate of an exit price when no fill is known:
// the last observed mark, then fallback, then the entry price.
func (t TradeRecord) ExitProxy(fallback decimal.Decimal) decimal.Decimal {
	switch {
	case t.LastMarkPrice.IsPositive():
		return t.LastMarkPrice
	case fallback.IsPositive():
		return fallback
	default:
		return t.EntryPrice
	}
}

// Closed builds the ClosedTrade for this record exiting at exit.
func (t TradeRecord) Closed(exit decimal.Decimal, at time.Time, reason CloseReason, estimated bool) ClosedTrade {
	return ClosedTrade{
		Symbol:       t.Symbol,
		Direction:    t.Direction,
		EntryOrderID: t.EntryOrderID,
		EntryPrice:   t.EntryPrice,
		ExitPrice:    exit,
		Quantity:     t.Quantity,
		PNL:          RealizedPnL(t.Direction, t.EntryPrice, exit, t.Quantity),
		EntryTime:    t.OpenedAt,
		ExitTime:     at,
		CloseReason:  reason,
		Estimated:    estimated,
	}
}
