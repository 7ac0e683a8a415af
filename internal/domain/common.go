package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType is the exchange order type used by the bot.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// MarginType is the futures margin mode applied per symbol.
type MarginType string

const (
	MarginIsolated MarginType = "ISOLATED"
	MarginCrossed  MarginType = "CROSSED"
)

// Direction is the side of a position held by the bot.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// ParseDirection accepts "long"/"short" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Long):
		return Long, nil
	case string(Short):
		return Short, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// DirectionFromPositionAmount maps a signed exchange position amount to a direction.
// ok is false for a flat (zero) amount.
func DirectionFromPositionAmount(signed decimal.Decimal) (Direction, bool) {
	switch signed.Sign() {
	case 1:
		return Long, true
	case -1:
		return Short, true
	default:
		return "", false
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// EntrySide is the order side that opens a position in this direction.
func (d Direction) EntrySide() OrderSide {
	if d == Long {
		return Buy
	}
	return Sell
}

// ExitSide is the order side that reduces a position in this direction.
func (d Direction) ExitSide() OrderSide {
	if d == Long {
		return Sell
	}
	return Buy
}

// Upper is used in notifications ("LONG", "SHORT").
func (d Direction) Upper() string {
	return strings.ToUpper(string(d))
}

// TradeStatus represents the lifecycle state of a managed trade.
type TradeStatus string

const (
	StatusOpen     TradeStatus = "open"
	StatusClosing  TradeStatus = "closing"
	StatusOrphaned TradeStatus = "orphaned"
	StatusClosed   TradeStatus = "closed"
)

// CloseReason indicates why a trade left active management.
type CloseReason string

const (
	CloseReasonReversal         CloseReason = "REVERSAL"
	CloseReasonClosedOnExchange CloseReason = "CLOSED_ON_EXCHANGE"
	CloseReasonStopAlreadyGone  CloseReason = "STOP_ALREADY_CLOSED"
	CloseReasonStaleRecord      CloseReason = "STALE_RECORD"
	CloseReasonUnknown          CloseReason = "Unknown"
)
