package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
)

// EntryNotice describes a newly opened and protected position.
type EntryNotice struct {
	Symbol     string
	Direction  domain.Direction
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// CloseNotice describes a position that left management.
type CloseNotice struct {
	Symbol     string
	Direction  domain.Direction
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	PNL        decimal.Decimal
	Reason     domain.CloseReason
	Estimated  bool
}

// Notifier delivers operator notifications. Implementations must not block the caller
// on delivery and never return delivery failures.
type Notifier interface {
	NotifyInfo(ctx context.Context, text string)
	NotifyError(ctx context.Context, title, detail string)
	NotifyEntry(ctx context.Context, n EntryNotice)
	NotifyClose(ctx context.Context, n CloseNotice)
}

// NewCloseNotice builds the notice for a closed trade.
func NewCloseNotice(t domain.ClosedTrade) CloseNotice {
	return CloseNotice{
		Symbol:     t.Symbol,
		Direction:  t.Direction,
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		PNL:        t.PNL,
		Reason:     t.CloseReason,
		Estimated:  t.Estimated,
	}
}
