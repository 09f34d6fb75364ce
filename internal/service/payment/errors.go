package payment

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrAmountMismatch: the paid amount does not equal the booking's total
	// cost. Possibly fraud or a stale retry; the booking is left untouched.
	ErrAmountMismatch = errors.New("payment amount does not match booking total")
)
