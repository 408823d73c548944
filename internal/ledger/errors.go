package ledger

import (
	"errors"
	"fmt"
)

// Rejection kinds returned by ledger operations. Handlers map these to
// HTTP statuses; compare with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("service not found")
	ErrNotActive         = errors.New("service not active")
	ErrPaymentMismatch   = errors.New("payment must match service price")
	ErrUnauthorized      = errors.New("caller not authorized")
	ErrAlreadySettled    = errors.New("payment already settled")
	ErrAlreadyRated      = errors.New("service already rated")
	ErrNotYetSettled     = errors.New("payment not yet released")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// ErrInvalidRating is the out-of-range rating rejection. It wraps
// ErrInvalidInput so callers checking either sentinel agree.
var ErrInvalidRating = fmt.Errorf("rating must be between 1 and 5: %w", ErrInvalidInput)

// Code returns a stable machine-readable code for a ledger rejection,
// or "internal" for anything else.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRating):
		return "invalid_rating"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrPaymentMismatch):
		return "payment_mismatch"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrAlreadyRated):
		return "already_rated"
	case errors.Is(err, ErrNotYetSettled):
		return "not_yet_settled"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "internal"
	}
}
