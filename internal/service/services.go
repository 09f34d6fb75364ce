package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/kafka"
	postgresrepo "github.com/skybook/skybook/internal/repository/postgres"
	redisrepo "github.com/skybook/skybook/internal/repository/redis"
	"github.com/skybook/skybook/internal/service/booking"
	"github.com/skybook/skybook/internal/service/catalog"
	"github.com/skybook/skybook/internal/service/payment"
	"github.com/skybook/skybook/internal/uow"
)

type Services struct {
	Catalog *catalog.Service
	Booking *booking.Service
	Payment *payment.Service
}

type Config struct {
	Catalog catalog.Config
	Booking booking.Config
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.FlightsPubSub,
	producer *kafka.Producer,
	cfg Config,
) *Services {
	flights := pgCatalog{store: store}
	airports := pgAirports{store: store}
	ledger := pgLedger{store: store}
	bookings := pgBookings{store: store}
	payments := pgPayments{store: store}

	bookingSvc := booking.New(
		flights,
		ledger,
		bookings,
		uow.NewUoW(store),
		cache,
		pubsub,
		producer,
		cfg.Booking,
	)

	return &Services{
		Catalog: catalog.New(flights, airports, cache, cfg.Catalog),
		Booking: bookingSvc,
		Payment: payment.New(bookingSvc, payments),
	}
}

// Adapters binding the service-side interfaces to the postgres store. Each
// method rebinds its repo to the caller's transaction handle (nil means the
// pool).

type pgCatalog struct{ store *postgresrepo.Store }

func (a pgCatalog) GetFlight(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Flight, error) {
	return a.store.Catalog().With(tx).GetFlight(ctx, id)
}

func (a pgCatalog) Search(ctx context.Context, c postgresrepo.SearchCriteria) ([]domain.Flight, error) {
	return a.store.Catalog().Search(ctx, c)
}

type pgAirports struct{ store *postgresrepo.Store }

func (a pgAirports) GetByCode(ctx context.Context, code string) (*domain.Airport, error) {
	return a.store.Airports().GetByID(ctx, code)
}

type pgLedger struct{ store *postgresrepo.Store }

func (a pgLedger) Reserve(ctx context.Context, tx postgresrepo.DB, flightID int64, seats int) (int, error) {
	return a.store.Ledger().With(tx).Reserve(ctx, flightID, seats)
}

func (a pgLedger) Release(ctx context.Context, tx postgresrepo.DB, flightID int64, seats int) (int, error) {
	return a.store.Ledger().With(tx).Release(ctx, flightID, seats)
}

type pgBookings struct{ store *postgresrepo.Store }

func (a pgBookings) Insert(ctx context.Context, tx postgresrepo.DB, b *domain.Booking) error {
	return a.store.Bookings().With(tx).Insert(ctx, b)
}

func (a pgBookings) Get(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.Booking, error) {
	return a.store.Bookings().With(tx).Get(ctx, id)
}

func (a pgBookings) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return a.store.Bookings().ListByUser(ctx, userID)
}

func (a pgBookings) Transition(
	ctx context.Context,
	tx postgresrepo.DB,
	id uuid.UUID,
	to domain.BookingStatus,
) (*domain.Booking, error) {
	return a.store.Bookings().With(tx).Transition(ctx, id, to)
}

func (a pgBookings) ExpiredIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return a.store.Bookings().ExpiredIDs(ctx, cutoff)
}

type pgPayments struct{ store *postgresrepo.Store }

func (a pgPayments) Record(ctx context.Context, p *domain.Payment) error {
	return a.store.Payments().Record(ctx, p)
}
