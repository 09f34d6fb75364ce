package booking

import "errors"

var (
	ErrFlightNotFound    = errors.New("flight not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidSeatCount  = errors.New("seat count must be positive")
	ErrInsufficientSeats = errors.New("not enough available seats")
	// ErrAlreadyFinalized: the booking reached the other terminal state first
	// (confirm raced an expiry, or cancel raced a confirmation).
	ErrAlreadyFinalized = errors.New("booking already finalized")
)
