package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/service/booking"
)

// Orchestrator finalizes bookings on behalf of a payment outcome.
type Orchestrator interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

type Payments interface {
	Record(ctx context.Context, p *domain.Payment) error
}

// Result is the payment collaborator's verdict on a booking. Delivery is
// at-least-once, so the same result may arrive more than once.
type Result struct {
	BookingID   uuid.UUID
	UserID      int64
	AmountCents int64
	Succeeded   bool
}

// Service validates payment outcomes and drives the matching booking
// transition.
type Service struct {
	orchestrator Orchestrator
	payments     Payments
}

func New(orchestrator Orchestrator, payments Payments) *Service {
	return &Service{orchestrator: orchestrator, payments: payments}
}

// HandleResult applies a payment outcome to its booking. A result for a
// booking already in a terminal state is a no-op, not an error, so redelivery
// is harmless.
//
// Returns:
//   - error: payment.ErrBookingNotFound if the booking does not exist.
//   - error: payment.ErrAmountMismatch if the amount differs from the
//     booking's total cost; the booking stays INITIATED.
func (s *Service) HandleResult(ctx context.Context, res Result) (*domain.Booking, error) {
	const op = "service.payment.HandleResult"

	b, err := s.orchestrator.GetBooking(ctx, res.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if b.Status.Terminal() {
		return b, nil
	}

	if res.AmountCents != b.TotalCents {
		return nil, fmt.Errorf("%s: paid %d, booking total %d: %w",
			op, res.AmountCents, b.TotalCents, ErrAmountMismatch)
	}

	status := domain.PaymentFailed
	finalize := s.orchestrator.CancelBooking
	if res.Succeeded {
		status = domain.PaymentSuccess
		finalize = s.orchestrator.ConfirmBooking
	}

	final, err := finalize(ctx, res.BookingID)
	if err != nil {
		// Finalized concurrently (expiry sweep or a duplicate delivery racing
		// this one). The other writer owns the outcome.
		if errors.Is(err, booking.ErrAlreadyFinalized) {
			return s.orchestrator.GetBooking(ctx, res.BookingID)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := &domain.Payment{
		ID:          uuid.New(),
		BookingID:   res.BookingID,
		UserID:      res.UserID,
		AmountCents: res.AmountCents,
		Status:      status,
	}
	if err := s.payments.Record(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return final, nil
}
