package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/kafka"
	"github.com/skybook/skybook/internal/repository"
	postgresrepo "github.com/skybook/skybook/internal/repository/postgres"
	"github.com/skybook/skybook/internal/uow"
)

// Catalog reads flights inside the caller's transaction.
type Catalog interface {
	GetFlight(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Flight, error)
}

// Ledger is the seat inventory. Reserve and Release run on the caller's
// transaction so a seat movement and its booking write commit together.
type Ledger interface {
	Reserve(ctx context.Context, tx postgresrepo.DB, flightID int64, seats int) (int, error)
	Release(ctx context.Context, tx postgresrepo.DB, flightID int64, seats int) (int, error)
}

type Bookings interface {
	Insert(ctx context.Context, tx postgresrepo.DB, b *domain.Booking) error
	Get(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	Transition(ctx context.Context, tx postgresrepo.DB, id uuid.UUID, to domain.BookingStatus) (*domain.Booking, error)
	ExpiredIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type Cache interface {
	InvalidateFlight(ctx context.Context, flightID int64) error
}

type Notifier interface {
	PublishFlightChanged(ctx context.Context, flightID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Config struct {
	// ExpiryTimeout is how long a booking may stay INITIATED before the sweep
	// cancels it and returns its seats.
	ExpiryTimeout time.Duration
	EventsTopic   string
}

// Service is the booking orchestrator: it drives the
// INITIATED→BOOKED / INITIATED→CANCELLED state machine and keeps every seat
// movement transactionally tied to the booking row it belongs to.
type Service struct {
	catalog  Catalog
	ledger   Ledger
	bookings Bookings
	uow      UnitOfWork
	cache    Cache
	notifier Notifier
	producer Producer
	cfg      Config
	now      func() time.Time
}

func New(
	catalog Catalog,
	ledger Ledger,
	bookings Bookings,
	unit UnitOfWork,
	cache Cache,
	notifier Notifier,
	producer Producer,
	cfg Config,
) *Service {
	if cfg.ExpiryTimeout <= 0 {
		cfg.ExpiryTimeout = 15 * time.Minute
	}

	return &Service{
		catalog:  catalog,
		ledger:   ledger,
		bookings: bookings,
		uow:      unit,
		cache:    cache,
		notifier: notifier,
		producer: producer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateBooking reserves seats on a flight and creates the INITIATED booking
// holding that claim, in one transaction: if the booking insert fails the
// reservation rolls back with it.
//
// Returns:
//   - error: booking.ErrInvalidSeatCount if seats is not positive.
//   - error: booking.ErrFlightNotFound if the flight does not exist.
//   - error: booking.ErrInsufficientSeats if the flight cannot cover the claim.
func (s *Service) CreateBooking(
	ctx context.Context,
	flightID, userID int64,
	seats int,
) (*domain.Booking, error) {
	const op = "service.booking.CreateBooking"

	if seats <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSeatCount)
	}

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		flight, err := s.catalog.GetFlight(ctx, tx, flightID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrFlightNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if _, err := s.ledger.Reserve(ctx, tx, flightID, seats); err != nil {
			if errors.Is(err, repository.ErrInsufficientSeats) {
				return fmt.Errorf("%s: %w", op, ErrInsufficientSeats)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		b := &domain.Booking{
			ID:         uuid.New(),
			FlightID:   flightID,
			UserID:     userID,
			Seats:      seats,
			TotalCents: int64(seats) * flight.PriceCents,
			Status:     domain.BookingInitiated,
		}

		if err := s.bookings.Insert(ctx, tx, b); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		out = b

		after(func(ctx context.Context) {
			s.flightChanged(ctx, flightID)
			s.publish(ctx, kafka.EventBookingCreated, b)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetBooking retrieves a booking.
//
// Returns:
//   - error: booking.ErrBookingNotFound if the booking does not exist.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.GetBooking"

	b, err := s.bookings.Get(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// ListUserBookings lists a user's bookings, newest first.
func (s *Service) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	const op = "service.booking.ListUserBookings"

	out, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ConfirmBooking finalizes a booking as BOOKED. Confirming an already BOOKED
// booking is a no-op; confirming one that got CANCELLED first fails with
// booking.ErrAlreadyFinalized.
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.ConfirmBooking"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.bookings.Transition(ctx, tx, id, domain.BookingBooked)
		if err == nil {
			out = b

			after(func(ctx context.Context) {
				s.publish(ctx, kafka.EventBookingConfirmed, b)
			})

			return nil
		}

		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}

		// Lost the gate. Reload to tell "already confirmed" (no-op) apart
		// from "not there" and "cancelled first".
		cur, err := s.bookings.Get(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if cur.Status == domain.BookingBooked {
			out = cur
			return nil
		}

		return fmt.Errorf("%s: status %s: %w", op, cur.Status, ErrAlreadyFinalized)
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// CancelBooking finalizes a booking as CANCELLED and releases its seat claim.
// Only the call that wins the status gate performs the release, so seats come
// back exactly once no matter how many cancellations race.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, _, err := s.cancel(ctx, id, kafka.EventBookingCancelled)
	return b, err
}

// cancel reports via won whether this call performed the transition (and the
// release), as opposed to observing a booking already cancelled.
func (s *Service) cancel(ctx context.Context, id uuid.UUID, event string) (*domain.Booking, bool, error) {
	const op = "service.booking.cancel"

	var out *domain.Booking
	var won bool

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.bookings.Transition(ctx, tx, id, domain.BookingCancelled)
		if err == nil {
			if _, err := s.ledger.Release(ctx, tx, b.FlightID, b.Seats); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			out = b
			won = true

			after(func(ctx context.Context) {
				s.flightChanged(ctx, b.FlightID)
				s.publish(ctx, event, b)
			})

			return nil
		}

		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}

		cur, err := s.bookings.Get(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}

		if cur.Status == domain.BookingCancelled {
			out = cur
			return nil
		}

		return fmt.Errorf("%s: status %s: %w", op, cur.Status, ErrAlreadyFinalized)
	})
	if err != nil {
		return nil, false, err
	}

	return out, won, nil
}

// ExpireInitiated sweeps bookings that stayed INITIATED past the expiry
// timeout, cancelling each and returning its seats. Every booking goes through
// the same status gate as CancelBooking, so a sweep racing a confirmation on
// the same booking never double-releases. Returns the number expired.
func (s *Service) ExpireInitiated(ctx context.Context) (int, error) {
	const op = "service.booking.ExpireInitiated"

	cutoff := s.now().Add(-s.cfg.ExpiryTimeout)

	ids, err := s.bookings.ExpiredIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	expired := 0
	for _, id := range ids {
		_, won, err := s.cancel(ctx, id, kafka.EventBookingExpired)
		if err != nil {
			// A booking finalized since the sweep read is not ours to touch.
			if errors.Is(err, ErrAlreadyFinalized) || errors.Is(err, ErrBookingNotFound) {
				continue
			}

			return expired, fmt.Errorf("%s: %w", op, err)
		}

		if won {
			expired++
		}
	}

	return expired, nil
}

func (s *Service) flightChanged(ctx context.Context, flightID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateFlight(ctx, flightID)
	}
	if s.notifier != nil {
		_ = s.notifier.PublishFlightChanged(ctx, flightID)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil || s.cfg.EventsTopic == "" {
		return
	}

	_ = s.producer.Publish(ctx, s.cfg.EventsTopic, b.ID.String(), kafka.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		FlightID:   b.FlightID,
		UserID:     b.UserID,
		Seats:      b.Seats,
		TotalCents: b.TotalCents,
		Status:     string(b.Status),
		OccurredAt: s.now(),
	})
}
