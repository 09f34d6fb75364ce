package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/service/booking"
)

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockOrchestrator) ConfirmBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockOrchestrator) CancelBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) Record(ctx context.Context, p *domain.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func TestHandleResult_Success(t *testing.T) {
	orch := &mockOrchestrator{}
	pays := &mockPayments{}
	s := New(orch, pays)

	ctx := context.Background()
	id := uuid.New()
	initiated := &domain.Booking{ID: id, TotalCents: 300, Status: domain.BookingInitiated}
	booked := &domain.Booking{ID: id, TotalCents: 300, Status: domain.BookingBooked}

	orch.On("GetBooking", ctx, id).Return(initiated, nil).Once()
	orch.On("ConfirmBooking", ctx, id).Return(booked, nil).Once()
	pays.On("Record", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.BookingID == id && p.Status == domain.PaymentSuccess && p.AmountCents == 300
	})).Return(nil).Once()

	b, err := s.HandleResult(ctx, Result{BookingID: id, AmountCents: 300, Succeeded: true})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingBooked, b.Status)
	orch.AssertExpectations(t)
	pays.AssertExpectations(t)
}

func TestHandleResult_FailureCancels(t *testing.T) {
	orch := &mockOrchestrator{}
	pays := &mockPayments{}
	s := New(orch, pays)

	ctx := context.Background()
	id := uuid.New()
	initiated := &domain.Booking{ID: id, FlightID: 4, TotalCents: 300, Status: domain.BookingInitiated}
	cancelled := &domain.Booking{ID: id, FlightID: 4, TotalCents: 300, Status: domain.BookingCancelled}

	orch.On("GetBooking", ctx, id).Return(initiated, nil).Once()
	orch.On("CancelBooking", ctx, id).Return(cancelled, nil).Once()
	pays.On("Record", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentFailed
	})).Return(nil).Once()

	b, err := s.HandleResult(ctx, Result{BookingID: id, AmountCents: 300, Succeeded: false})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)
}

func TestHandleResult_AmountMismatch(t *testing.T) {
	orch := &mockOrchestrator{}
	pays := &mockPayments{}
	s := New(orch, pays)

	ctx := context.Background()
	id := uuid.New()
	initiated := &domain.Booking{ID: id, TotalCents: 300, Status: domain.BookingInitiated}

	orch.On("GetBooking", ctx, id).Return(initiated, nil).Once()

	b, err := s.HandleResult(ctx, Result{BookingID: id, AmountCents: 250, Succeeded: true})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrAmountMismatch)
	// The booking must stay INITIATED: no transition, no payment row.
	orch.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything)
	orch.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
	pays.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestHandleResult_RepeatDeliveryIsNoOp(t *testing.T) {
	orch := &mockOrchestrator{}
	pays := &mockPayments{}
	s := New(orch, pays)

	ctx := context.Background()
	id := uuid.New()
	booked := &domain.Booking{ID: id, TotalCents: 300, Status: domain.BookingBooked}

	orch.On("GetBooking", ctx, id).Return(booked, nil).Once()

	b, err := s.HandleResult(ctx, Result{BookingID: id, AmountCents: 300, Succeeded: true})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingBooked, b.Status)
	orch.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything)
	pays.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestHandleResult_BookingNotFound(t *testing.T) {
	orch := &mockOrchestrator{}
	s := New(orch, &mockPayments{})

	ctx := context.Background()
	id := uuid.New()

	orch.On("GetBooking", ctx, id).Return(nil, booking.ErrBookingNotFound).Once()

	b, err := s.HandleResult(ctx, Result{BookingID: id, AmountCents: 300})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestHandleResult_RaceWithExpiryResolves(t *testing.T) {
	orch := &mockOrchestrator{}
	pays := &mockPayments{}
	s := New(orch, pays)

	ctx := context.Background()
	id := uuid.New()
	initiated := &domain.Booking{ID: id, TotalCents: 300, Status: domain.BookingInitiated}
	cancelled := &domain.Booking{ID: id, TotalCents: 300, Status: domain.BookingCancelled}

	// The expiry sweep cancels the booking between the read and the confirm.
	orch.On("GetBooking", ctx, id).Return(initiated, nil).Once()
	orch.On("ConfirmBooking", ctx, id).Return(nil, booking.ErrAlreadyFinalized).Once()
	orch.On("GetBooking", ctx, id).Return(cancelled, nil).Once()

	b, err := s.HandleResult(ctx, Result{BookingID: id, AmountCents: 300, Succeeded: true})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)
	pays.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}
