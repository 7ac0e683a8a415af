package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = errors.New("order not found on the exchange")
	ErrPositionNotFound     = errors.New("position not found on the exchange")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")
	ErrOrderAlreadyClosed   = errors.New("order already filled, canceled or expired")

	// Trading Errors
	ErrConflict            = errors.New("position conflicts with the requested direction")
	ErrCapacityReached     = errors.New("maximum number of open trades reached")
	ErrProtectionFailure   = errors.New("failed to protect position with a stop order")
	ErrInsufficientBalance = errors.New("available balance is not positive")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrZeroQuantity        = errors.New("quantity rounds down to zero")
	ErrBelowMinNotional    = errors.New("order notional is below the exchange minimum")
	ErrQueueFull           = errors.New("signal queue is full")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)

// ErrValidation is returned by the signal intake for malformed payloads.
var ErrValidation = ErrInvalidRequest
