package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

// SizerConfig holds the parameters for position sizing.
type SizerConfig struct {
	TradableBalanceRatio decimal.Decimal // share of balance available for trading, in (0, 1]
	MaxOpenTrades        int             // balance is split evenly across this many trades
	StopLossPercent      decimal.Decimal // initial stop distance from the fill, in (0, 1)
}

// Validate reports configuration errors wrapped in ports.ErrConfigurationError.
func (c SizerConfig) Validate() error {
	if c.MaxOpenTrades <= 0 {
		return fmt.Errorf("%w: max open trades must be positive, got %d", ports.ErrConfigurationError, c.MaxOpenTrades)
	}
	if !c.TradableBalanceRatio.IsPositive() || c.TradableBalanceRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tradable balance ratio must be in (0, 1], got %s", ports.ErrConfigurationError, c.TradableBalanceRatio)
	}
	if !c.StopLossPercent.IsPositive() || !c.StopLossPercent.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: stop loss must be in (0, 1), got %s", ports.ErrConfigurationError, c.StopLossPercent)
	}
	return nil
}

// PositionSizer computes order quantities and initial stop prices. It performs no I/O.
type PositionSizer struct {
	config SizerConfig
}

// NewPositionSizer validates config and creates a sizer.
func NewPositionSizer(config SizerConfig) (*PositionSizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &PositionSizer{config: config}, nil
}

// Size returns the quantity to trade for symbol at entryPrice given the account balance.
// The quantity is truncated to the instrument's quantity step.
func (s *PositionSizer) Size(symbol string, balance, entryPrice decimal.Decimal, filters domain.InstrumentFilters) (decimal.Decimal, error) {
	if err := s.config.Validate(); err != nil {
		return decimal.Zero, err
	}
	if !balance.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: balance %s: %w", symbol, balance, ports.ErrInsufficientBalance)
	}
	if !entryPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: entry price %s: %w", symbol, entryPrice, ports.ErrInvalidPrice)
	}

	tradable := balance.Mul(s.config.TradableBalanceRatio)
	perTrade := tradable.Div(decimal.NewFromInt(int64(s.config.MaxOpenTrades)))
	qty := domain.TruncateToStep(perTrade.Div(entryPrice), filters.QuantityStep)

	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %s quote per trade at %s: %w", symbol, perTrade.StringFixed(2), entryPrice, ports.ErrZeroQuantity)
	}
	if notional := qty.Mul(entryPrice); notional.LessThan(filters.MinNotional) {
		return decimal.Zero, fmt.Errorf("%s: notional %s < %s: %w", symbol, notional, filters.MinNotional, ports.ErrBelowMinNotional)
	}
	return qty, nil
}

// InitialStopPrice places the stop StopLossPercent away from fill on the losing side,
// truncated to the price tick.
func (s *PositionSizer) InitialStopPrice(dir domain.Direction, fill, tick decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	var stop decimal.Decimal
	if dir == domain.Long {
		stop = fill.Mul(one.Sub(s.config.StopLossPercent))
	} else {
		stop = fill.Mul(one.Add(s.config.StopLossPercent))
	}
	return domain.TruncateToStep(stop, tick)
}

// MaxOpenTrades is the capacity of the trade registry.
func (s *PositionSizer) MaxOpenTrades() int {
	return s.config.MaxOpenTrades
}
