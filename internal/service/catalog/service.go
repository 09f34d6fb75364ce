package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skybook/skybook/internal/domain"
	"github.com/skybook/skybook/internal/repository"
	postgresrepo "github.com/skybook/skybook/internal/repository/postgres"
	redisrepo "github.com/skybook/skybook/internal/repository/redis"
)

type Flights interface {
	GetFlight(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Flight, error)
	Search(ctx context.Context, c postgresrepo.SearchCriteria) ([]domain.Flight, error)
}

type Airports interface {
	GetByCode(ctx context.Context, code string) (*domain.Airport, error)
}

type Config struct {
	FlightTTL time.Duration
	SearchTTL time.Duration
}

// Service is the read side of the flight catalog: joined flight lookups and
// searches, cached in Redis. Pure reads, no locking.
type Service struct {
	flights  Flights
	airports Airports
	cache    *redisrepo.Cache
	cfg      Config
}

func New(flights Flights, airports Airports, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.FlightTTL <= 0 {
		cfg.FlightTTL = 30 * time.Second
	}

	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = 15 * time.Second
	}

	return &Service{
		flights:  flights,
		airports: airports,
		cache:    cache,
		cfg:      cfg,
	}
}

// GetFlight retrieves a flight with its airplane, airports and cities.
//
// Returns:
//   - error: catalog.ErrFlightNotFound if the flight (or a required
//     association) is missing.
func (s *Service) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	const op = "service.catalog.GetFlight"

	load := func(ctx context.Context) (domain.Flight, error) {
		f, err := s.flights.GetFlight(ctx, nil, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Flight{}, ErrFlightNotFound
			}

			return domain.Flight{}, err
		}

		return *f, nil
	}

	if s.cache == nil {
		f, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &f, nil
	}

	f, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyFlight(id), s.cfg.FlightTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &f, nil
}

// Search lists flights matching the criteria. An empty result is a valid
// answer, not an error.
//
// Returns:
//   - error: catalog.ErrMissingCriteria if either airport code is empty.
//   - error: catalog.ErrUnknownAirport if a referenced code does not exist.
func (s *Service) Search(ctx context.Context, c postgresrepo.SearchCriteria) ([]domain.Flight, error) {
	const op = "service.catalog.Search"

	if c.DepartureCode == "" || c.ArrivalCode == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCriteria)
	}

	for _, code := range []string{c.DepartureCode, c.ArrivalCode} {
		if _, err := s.airports.GetByCode(ctx, code); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s: %q: %w", op, code, ErrUnknownAirport)
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	load := func(ctx context.Context) ([]domain.Flight, error) {
		return s.flights.Search(ctx, c)
	}

	if s.cache == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	// Only the common lookup shape is cached; narrowed searches go straight
	// to the store.
	if c.MaxPriceCents > 0 || c.OnlyAvailable {
		out, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}

	key := redisrepo.KeySearch(c.DepartureCode, c.ArrivalCode, c.DepartureDate.Format("2006-01-02"))

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, s.cfg.SearchTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
