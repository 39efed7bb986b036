package domain

import "errors"

// Sentinel errors for ledger operations.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrUnknownSymbol      = errors.New("unknown_symbol")
	ErrPricingUnavailable = errors.New("pricing_unavailable")
	ErrAccountNotFound    = errors.New("account_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
