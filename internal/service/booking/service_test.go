package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/repository"
	postgresrepo "github.com/skybook/skybook/internal/repository/postgres"
	"github.com/skybook/skybook/internal/uow"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetFlight(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Reserve(ctx context.Context, tx postgresrepo.DB, flightID int64, seats int) (int, error) {
	args := m.Called(ctx, tx, flightID, seats)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) Release(ctx context.Context, tx postgresrepo.DB, flightID int64, seats int) (int, error) {
	args := m.Called(ctx, tx, flightID, seats)
	return args.Int(0), args.Error(1)
}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) Insert(ctx context.Context, tx postgresrepo.DB, b *domain.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *mockBookings) Get(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookings) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *mockBookings) Transition(
	ctx context.Context,
	tx postgresrepo.DB,
	id uuid.UUID,
	to domain.BookingStatus,
) (*domain.Booking, error) {
	args := m.Called(ctx, tx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookings) ExpiredIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// fakeUoW runs the unit body without a database: the body sees a nil tx, and
// after-commit hooks run only when the body succeeds, matching commit
// semantics.
type fakeUoW struct{}

func (fakeUoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit
	if err := fn(ctx, nil, func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

func newTestService(c Catalog, l Ledger, b Bookings) *Service {
	return &Service{
		catalog:  c,
		ledger:   l,
		bookings: b,
		uow:      fakeUoW{},
		cfg:      Config{ExpiryTimeout: 15 * time.Minute},
		now:      time.Now,
	}
}

func TestCreateBooking_Success(t *testing.T) {
	cat := &mockCatalog{}
	led := &mockLedger{}
	bk := &mockBookings{}
	s := newTestService(cat, led, bk)

	ctx := context.Background()
	flight := &domain.Flight{ID: 4, PriceCents: 100, AvailableSeats: 10}

	cat.On("GetFlight", ctx, nil, int64(4)).Return(flight, nil).Once()
	led.On("Reserve", ctx, nil, int64(4), 3).Return(7, nil).Once()
	bk.On("Insert", ctx, nil, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()

	b, err := s.CreateBooking(ctx, 4, 77, 3)

	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, domain.BookingInitiated, b.Status)
	assert.Equal(t, int64(4), b.FlightID)
	assert.Equal(t, int64(77), b.UserID)
	assert.Equal(t, 3, b.Seats)
	assert.Equal(t, int64(300), b.TotalCents)
	assert.NotEqual(t, uuid.Nil, b.ID)

	cat.AssertExpectations(t)
	led.AssertExpectations(t)
	bk.AssertExpectations(t)
}

func TestCreateBooking_InvalidSeatCount(t *testing.T) {
	s := newTestService(&mockCatalog{}, &mockLedger{}, &mockBookings{})

	for _, seats := range []int{0, -5} {
		b, err := s.CreateBooking(context.Background(), 4, 77, seats)
		assert.Nil(t, b)
		assert.ErrorIs(t, err, ErrInvalidSeatCount)
	}
}

func TestCreateBooking_FlightNotFound(t *testing.T) {
	cat := &mockCatalog{}
	s := newTestService(cat, &mockLedger{}, &mockBookings{})

	ctx := context.Background()
	cat.On("GetFlight", ctx, nil, int64(9)).Return(nil, repository.ErrNotFound).Once()

	b, err := s.CreateBooking(ctx, 9, 77, 1)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrFlightNotFound)
	cat.AssertExpectations(t)
}

func TestCreateBooking_InsufficientSeats(t *testing.T) {
	cat := &mockCatalog{}
	led := &mockLedger{}
	bk := &mockBookings{}
	s := newTestService(cat, led, bk)

	ctx := context.Background()
	flight := &domain.Flight{ID: 4, PriceCents: 100, AvailableSeats: 1}

	cat.On("GetFlight", ctx, nil, int64(4)).Return(flight, nil).Once()
	led.On("Reserve", ctx, nil, int64(4), 2).Return(0, repository.ErrInsufficientSeats).Once()

	b, err := s.CreateBooking(ctx, 4, 77, 2)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrInsufficientSeats)
	bk.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_InsertFailureRollsBack(t *testing.T) {
	cat := &mockCatalog{}
	led := &mockLedger{}
	bk := &mockBookings{}
	s := newTestService(cat, led, bk)

	ctx := context.Background()
	flight := &domain.Flight{ID: 4, PriceCents: 100, AvailableSeats: 10}
	boom := errors.New("insert failed")

	cat.On("GetFlight", ctx, nil, int64(4)).Return(flight, nil).Once()
	led.On("Reserve", ctx, nil, int64(4), 1).Return(9, nil).Once()
	bk.On("Insert", ctx, nil, mock.Anything).Return(boom).Once()

	b, err := s.CreateBooking(ctx, 4, 77, 1)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, boom)
	// The reservation and the insert share one transaction; the service must
	// not compensate with an explicit release when the insert fails.
	led.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBooking_Success(t *testing.T) {
	bk := &mockBookings{}
	s := newTestService(&mockCatalog{}, &mockLedger{}, bk)

	ctx := context.Background()
	id := uuid.New()
	booked := &domain.Booking{ID: id, FlightID: 4, Seats: 2, Status: domain.BookingBooked}

	bk.On("Transition", ctx, nil, id, domain.BookingBooked).Return(booked, nil).Once()

	b, err := s.ConfirmBooking(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingBooked, b.Status)
	bk.AssertExpectations(t)
}

func TestConfirmBooking_RepeatIsNoOp(t *testing.T) {
	bk := &mockBookings{}
	s := newTestService(&mockCatalog{}, &mockLedger{}, bk)

	ctx := context.Background()
	id := uuid.New()
	booked := &domain.Booking{ID: id, Status: domain.BookingBooked}

	bk.On("Transition", ctx, nil, id, domain.BookingBooked).Return(nil, repository.ErrNotFound).Once()
	bk.On("Get", ctx, nil, id).Return(booked, nil).Once()

	b, err := s.ConfirmBooking(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingBooked, b.Status)
}

func TestConfirmBooking_CancelledFirst(t *testing.T) {
	bk := &mockBookings{}
	s := newTestService(&mockCatalog{}, &mockLedger{}, bk)

	ctx := context.Background()
	id := uuid.New()
	cancelled := &domain.Booking{ID: id, Status: domain.BookingCancelled}

	bk.On("Transition", ctx, nil, id, domain.BookingBooked).Return(nil, repository.ErrNotFound).Once()
	bk.On("Get", ctx, nil, id).Return(cancelled, nil).Once()

	b, err := s.ConfirmBooking(ctx, id)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestConfirmBooking_NotFound(t *testing.T) {
	bk := &mockBookings{}
	s := newTestService(&mockCatalog{}, &mockLedger{}, bk)

	ctx := context.Background()
	id := uuid.New()

	bk.On("Transition", ctx, nil, id, domain.BookingBooked).Return(nil, repository.ErrNotFound).Once()
	bk.On("Get", ctx, nil, id).Return(nil, repository.ErrNotFound).Once()

	b, err := s.ConfirmBooking(ctx, id)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBooking_ReleasesExactlyOnce(t *testing.T) {
	bk := &mockBookings{}
	led := &mockLedger{}
	s := newTestService(&mockCatalog{}, led, bk)

	ctx := context.Background()
	id := uuid.New()
	cancelled := &domain.Booking{ID: id, FlightID: 4, Seats: 2, Status: domain.BookingCancelled}

	// First cancel wins the gate and releases.
	bk.On("Transition", ctx, nil, id, domain.BookingCancelled).Return(cancelled, nil).Once()
	led.On("Release", ctx, nil, int64(4), 2).Return(10, nil).Once()

	b, err := s.CancelBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)

	// Second cancel loses the gate and must not release again.
	bk.On("Transition", ctx, nil, id, domain.BookingCancelled).Return(nil, repository.ErrNotFound).Once()
	bk.On("Get", ctx, nil, id).Return(cancelled, nil).Once()

	b, err = s.CancelBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)

	led.AssertNumberOfCalls(t, "Release", 1)
}

func TestCancelBooking_LedgerCorruptionSurfaces(t *testing.T) {
	bk := &mockBookings{}
	led := &mockLedger{}
	s := newTestService(&mockCatalog{}, led, bk)

	ctx := context.Background()
	id := uuid.New()
	cancelled := &domain.Booking{ID: id, FlightID: 4, Seats: 2, Status: domain.BookingCancelled}

	bk.On("Transition", ctx, nil, id, domain.BookingCancelled).Return(cancelled, nil).Once()
	led.On("Release", ctx, nil, int64(4), 2).Return(0, repository.ErrLedgerCorrupted).Once()

	b, err := s.CancelBooking(ctx, id)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, repository.ErrLedgerCorrupted)
}

func TestExpireInitiated(t *testing.T) {
	bk := &mockBookings{}
	led := &mockLedger{}
	s := newTestService(&mockCatalog{}, led, bk)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0.Add(16 * time.Minute) }

	ctx := context.Background()
	stale := uuid.New()
	raced := uuid.New()

	staleBooking := &domain.Booking{ID: stale, FlightID: 4, Seats: 3, Status: domain.BookingCancelled}
	confirmed := &domain.Booking{ID: raced, FlightID: 4, Seats: 1, Status: domain.BookingBooked}

	// The sweep reads candidates as of now minus the 15 minute timeout.
	bk.On("ExpiredIDs", ctx, t0.Add(time.Minute)).Return([]uuid.UUID{stale, raced}, nil).Once()

	bk.On("Transition", ctx, nil, stale, domain.BookingCancelled).Return(staleBooking, nil).Once()
	led.On("Release", ctx, nil, int64(4), 3).Return(10, nil).Once()

	// The second candidate got confirmed between the read and the write.
	bk.On("Transition", ctx, nil, raced, domain.BookingCancelled).Return(nil, repository.ErrNotFound).Once()
	bk.On("Get", ctx, nil, raced).Return(confirmed, nil).Once()

	expired, err := s.ExpireInitiated(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	led.AssertNumberOfCalls(t, "Release", 1)
	bk.AssertExpectations(t)
}

// fakeInventory mimics the ledger's conditional update: the availability check
// and the decrement are one atomic step per flight.
type fakeInventory struct {
	mu        sync.Mutex
	available int
	capacity  int
}

func (f *fakeInventory) Reserve(_ context.Context, _ postgresrepo.DB, _ int64, seats int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.available < seats {
		return 0, repository.ErrInsufficientSeats
	}

	f.available -= seats
	return f.available, nil
}

func (f *fakeInventory) Release(_ context.Context, _ postgresrepo.DB, _ int64, seats int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.available+seats > f.capacity {
		return 0, repository.ErrLedgerCorrupted
	}

	f.available += seats
	return f.available, nil
}

type fakeBookingStore struct {
	mu       sync.Mutex
	inserted []*domain.Booking
}

func (f *fakeBookingStore) Insert(_ context.Context, _ postgresrepo.DB, b *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, b)
	return nil
}

func (f *fakeBookingStore) Get(context.Context, postgresrepo.DB, uuid.UUID) (*domain.Booking, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeBookingStore) ListByUser(context.Context, int64) ([]domain.Booking, error) {
	return nil, nil
}

func (f *fakeBookingStore) Transition(context.Context, postgresrepo.DB, uuid.UUID, domain.BookingStatus) (*domain.Booking, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeBookingStore) ExpiredIDs(context.Context, time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

type staticCatalog struct {
	flight *domain.Flight
}

func (c staticCatalog) GetFlight(context.Context, postgresrepo.DB, int64) (*domain.Flight, error) {
	return c.flight, nil
}

func TestCreateBooking_NoOversellUnderContention(t *testing.T) {
	inv := &fakeInventory{available: 2, capacity: 2}
	store := &fakeBookingStore{}
	s := newTestService(
		staticCatalog{flight: &domain.Flight{ID: 4, PriceCents: 100, AvailableSeats: 2}},
		inv,
		store,
	)

	ctx := context.Background()

	// Two concurrent requests totalling 3 seats against 2 available: exactly
	// one may succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, seats := range []int{2, 1} {
		wg.Add(1)
		go func(i, seats int) {
			defer wg.Done()
			_, errs[i] = s.CreateBooking(ctx, 4, int64(i), seats)
		}(i, seats)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientSeats):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.GreaterOrEqual(t, inv.available, 0)
	assert.Len(t, store.inserted, 1)
}

func TestCreateBooking_NoOversellManyCallers(t *testing.T) {
	const capacity = 5

	inv := &fakeInventory{available: capacity, capacity: capacity}
	store := &fakeBookingStore{}
	s := newTestService(
		staticCatalog{flight: &domain.Flight{ID: 4, PriceCents: 100, AvailableSeats: capacity}},
		inv,
		store,
	)

	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.CreateBooking(ctx, 4, int64(i), 1)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, ErrInsufficientSeats)
		}
	}

	assert.Equal(t, capacity, ok)
	assert.Equal(t, 0, inv.available)
	assert.Len(t, store.inserted, capacity)
}
