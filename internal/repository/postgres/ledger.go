package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skybook/skybook/internal/repository"
)

// LedgerRepo owns the flight seat counter. Reserve and Release are single
// conditional UPDATEs, so the check and the write are one atomic step for all
// concurrent callers touching the same flight row — two reservations whose sum
// exceeds the remaining seats can never both pass.
type LedgerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserve claims seats on a flight and returns the seats remaining afterwards.
//
// Returns:
//   - error: repository.ErrInsufficientSeats when the flight exists but cannot
//     cover the claim. A business rejection; callers must not retry blindly.
//   - error: repository.ErrNotFound when the flight does not exist.
func (r *LedgerRepo) Reserve(ctx context.Context, flightID int64, seats int) (int, error) {
	const op = "postgres.LedgerRepo.Reserve"

	if seats <= 0 {
		return 0, fmt.Errorf("%s: seats must be positive: %w", op, repository.ErrValidation)
	}

	db := r.handle()

	var remaining int
	err := db.QueryRow(ctx,
		`UPDATE flights
		    SET available_seats = available_seats - $2, updated_at = now()
		  WHERE id = $1 AND available_seats >= $2
		  RETURNING available_seats`,
		flightID, seats,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	// The conditional update matched nothing: tell a missing flight apart
	// from one that is simply full.
	var available int
	err = db.QueryRow(ctx, `SELECT available_seats FROM flights WHERE id = $1`, flightID).
		Scan(&available)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return 0, fmt.Errorf("%s: flight %d has %d of %d requested seats: %w",
		op, flightID, available, seats, repository.ErrInsufficientSeats)
}

// Release returns seats to a flight and reports the seats available afterwards.
// The increment is guarded against the airplane capacity: a release that would
// exceed it means a claim is being returned twice, which is a ledger corruption
// and is surfaced as such, never silently clamped.
func (r *LedgerRepo) Release(ctx context.Context, flightID int64, seats int) (int, error) {
	const op = "postgres.LedgerRepo.Release"

	if seats <= 0 {
		return 0, fmt.Errorf("%s: seats must be positive: %w", op, repository.ErrValidation)
	}

	db := r.handle()

	var available int
	err := db.QueryRow(ctx,
		`UPDATE flights f
		    SET available_seats = f.available_seats + $2, updated_at = now()
		   FROM airplanes p
		  WHERE f.id = $1
		    AND p.id = f.airplane_id
		    AND f.available_seats + $2 <= p.capacity
		  RETURNING f.available_seats`,
		flightID, seats,
	).Scan(&available)
	if err == nil {
		return available, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	var exists bool
	err = db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM flights WHERE id = $1)`, flightID).
		Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if !exists {
		return 0, fmt.Errorf("%s: flight %d: %w", op, flightID, repository.ErrNotFound)
	}

	return 0, fmt.Errorf("%s: releasing %d seats on flight %d would exceed capacity: %w",
		op, seats, flightID, repository.ErrLedgerCorrupted)
}
