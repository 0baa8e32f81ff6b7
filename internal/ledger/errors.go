package ledger

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("ledger record not found")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the row's current state.
	ErrInvalidTransition = errors.New("invalid ledger status transition")
)
