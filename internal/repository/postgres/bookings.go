package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingColumns = `id, flight_id, user_id, seats, total_cents, status, created_at, updated_at`

func scanBooking(row Row) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.FlightID, &b.UserID, &b.Seats, &b.TotalCents,
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// Insert stores a new booking row. The caller runs it on the same transaction
// as the seat reservation so both commit or roll back together.
func (r *BookingRepo) Insert(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Insert"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO bookings (id, flight_id, user_id, seats, total_cents, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		b.ID, b.FlightID, b.UserID, b.Seats, b.TotalCents, b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a booking by ID.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &b, nil
}

// ListByUser lists a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByUser"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return out, nil
}

// Transition moves a booking out of INITIATED. The status predicate makes the
// update the atomic gate against concurrent finalization: exactly one caller
// wins it, and only the winner may release the seat claim.
//
// Returns:
//   - *domain.Booking: the booking after the transition, when this call won.
//   - error: repository.ErrNotFound if no INITIATED row with this ID matched;
//     the caller reloads to learn which terminal state got there first.
func (r *BookingRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	to domain.BookingStatus,
) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Transition"

	if !domain.CanTransition(domain.BookingInitiated, to) {
		return nil, fmt.Errorf("%s: illegal target status %s: %w",
			op, to, repository.ErrValidation)
	}

	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`UPDATE bookings
		    SET status = $2, updated_at = now()
		  WHERE id = $1 AND status = $3
		  RETURNING `+bookingColumns,
		id, to, domain.BookingInitiated,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &b, nil
}

// ExpiredIDs lists bookings still INITIATED at or before the cutoff. Candidates
// only: each one is finalized individually through the Transition gate, so a
// booking confirmed between the sweep's read and its write is left alone.
func (r *BookingRepo) ExpiredIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	const op = "postgres.BookingRepo.ExpiredIDs"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id FROM bookings WHERE status = $1 AND created_at <= $2`,
		domain.BookingInitiated, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return ids, nil
}
