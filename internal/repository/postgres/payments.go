package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skybook/skybook/internal/domain"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Record upserts the payment outcome for a booking. booking_id is unique, so a
// redelivered payment result overwrites its own earlier row instead of
// accumulating duplicates.
func (r *PaymentRepo) Record(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Record"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO payments (id, booking_id, user_id, amount_cents, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (booking_id)
		 DO UPDATE SET status = EXCLUDED.status, amount_cents = EXCLUDED.amount_cents
		 RETURNING id, created_at`,
		p.ID, p.BookingID, p.UserID, p.AmountCents, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// GetByBooking retrieves the payment recorded for a booking, if any.
//
// Returns:
//   - error: repository.ErrNotFound if no payment exists for the booking.
func (r *PaymentRepo) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.GetByBooking"

	db := r.handle()

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT id, booking_id, user_id, amount_cents, status, created_at
		   FROM payments WHERE booking_id = $1`,
		bookingID,
	).Scan(&p.ID, &p.BookingID, &p.UserID, &p.AmountCents, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &p, nil
}
