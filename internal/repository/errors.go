package repository

import "errors"

var (
	// ErrNotFound: the addressed row does not exist (or a required join is missing).
	ErrNotFound = errors.New("not found")
	// ErrValidation: the write violates a schema constraint or names an unknown column.
	ErrValidation = errors.New("validation failed")
	// ErrConflict: a unique constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientSeats: a seat reservation was rejected because the flight
	// does not have enough available seats. A business rejection, not a fault.
	ErrInsufficientSeats = errors.New("insufficient available seats")
	// ErrLedgerCorrupted: a seat release would push available seats past airplane
	// capacity. The ledger invariant is broken; never auto-corrected.
	ErrLedgerCorrupted = errors.New("seat ledger corrupted")
	// ErrStoreUnavailable: the store timed out or the connection failed.
	// Transient; callers may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)
