package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
)

// TradeJournal is an append-style audit log of trades.
// It is write-mostly and never used to rebuild in-memory state.
type TradeJournal interface {
	// RecordOpen stores a newly opened trade.
	RecordOpen(ctx context.Context, rec domain.TradeRecord) error
	// RecordClose stores a trade that left management with its realized P&L.
	RecordClose(ctx context.Context, trade domain.ClosedTrade) error
	// RecordOrphan stores a position that could not be protected or closed.
	RecordOrphan(ctx context.Context, rec domain.TradeRecord, reason string) error
	// FindRecent returns the most recent closed trades, newest first.
	FindRecent(ctx context.Context, limit int) ([]domain.ClosedTrade, error)
	// GetTotalProfit sums realized P&L over all closed trades.
	GetTotalProfit(ctx context.Context) (decimal.Decimal, error)
}
