package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skybook/skybook/internal/domain"
)

// Reference-data mappings for the generic gateway. Flights are not mapped here:
// a flight read always carries its airplane and both airport/city associations,
// which is CatalogRepo's job.

var CityMapping = Mapping[domain.City]{
	Table:   "cities",
	IDCol:   "id",
	Columns: []string{"id", "name"},
	Scan: func(row Row) (domain.City, error) {
		var c domain.City
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	},
}

var AirplaneMapping = Mapping[domain.Airplane]{
	Table:   "airplanes",
	IDCol:   "id",
	Columns: []string{"id", "model_name", "capacity"},
	Scan: func(row Row) (domain.Airplane, error) {
		var a domain.Airplane
		err := row.Scan(&a.ID, &a.Model, &a.Capacity)
		return a, err
	},
}

// Airports are addressed by their business key, the IATA code.
var AirportMapping = Mapping[domain.Airport]{
	Table:   "airports",
	IDCol:   "code",
	Columns: []string{"code", "name", "city_id"},
	Scan: func(row Row) (domain.Airport, error) {
		var a domain.Airport
		err := row.Scan(&a.Code, &a.Name, &a.City.ID)
		return a, err
	},
}

func (s *Store) Cities() *Gateway[domain.City]        { return NewGateway(s.pool, CityMapping) }
func (s *Store) Airplanes() *Gateway[domain.Airplane] { return NewGateway(s.pool, AirplaneMapping) }
func (s *Store) Airports() *Gateway[domain.Airport]   { return NewGateway(s.pool, AirportMapping) }

// SearchCriteria filters the flight search. Departure and arrival codes are
// mandatory; the rest narrow the result.
type SearchCriteria struct {
	DepartureCode string
	ArrivalCode   string
	DepartureDate time.Time // zero value: any date
	MaxPriceCents int64     // zero: unbounded
	OnlyAvailable bool      // at least one free seat
}

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// flightSelect joins a flight with its airplane and both airports (matched on
// airports.code, the documented non-PK foreign key) and their cities. All joins
// are inner: a flight missing any association does not count as found.
const flightSelect = `
	SELECT f.id, f.departure_at, f.arrival_at, f.price_cents, f.available_seats,
	       f.created_at, f.updated_at,
	       p.id, p.model_name, p.capacity,
	       da.code, da.name, dc.id, dc.name,
	       aa.code, aa.name, ac.id, ac.name
	  FROM flights f
	  JOIN airplanes p ON p.id = f.airplane_id
	  JOIN airports da ON da.code = f.departure_airport_code
	  JOIN cities dc ON dc.id = da.city_id
	  JOIN airports aa ON aa.code = f.arrival_airport_code
	  JOIN cities ac ON ac.id = aa.city_id`

func scanFlight(row Row) (domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(
		&f.ID, &f.DepartureAt, &f.ArrivalAt, &f.PriceCents, &f.AvailableSeats,
		&f.CreatedAt, &f.UpdatedAt,
		&f.Airplane.ID, &f.Airplane.Model, &f.Airplane.Capacity,
		&f.DepartureAirport.Code, &f.DepartureAirport.Name,
		&f.DepartureAirport.City.ID, &f.DepartureAirport.City.Name,
		&f.ArrivalAirport.Code, &f.ArrivalAirport.Name,
		&f.ArrivalAirport.City.ID, &f.ArrivalAirport.City.Name,
	)
	return f, err
}

// GetFlight retrieves a flight with its full association graph.
//
// Returns:
//   - *domain.Flight: the flight when found.
//   - error: repository.ErrNotFound if no row (or required association) matches.
func (r *CatalogRepo) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	const op = "postgres.CatalogRepo.GetFlight"

	db := r.handle()

	f, err := scanFlight(db.QueryRow(ctx, flightSelect+` WHERE f.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &f, nil
}

// Search lists flights matching the criteria, ordered by departure time.
// An empty result is not an error.
func (r *CatalogRepo) Search(ctx context.Context, c SearchCriteria) ([]domain.Flight, error) {
	const op = "postgres.CatalogRepo.Search"

	db := r.handle()

	where := []string{
		"f.departure_airport_code = $1",
		"f.arrival_airport_code = $2",
	}
	args := []any{c.DepartureCode, c.ArrivalCode}

	if !c.DepartureDate.IsZero() {
		args = append(args, c.DepartureDate)
		where = append(where, fmt.Sprintf("f.departure_at::date = $%d::date", len(args)))
	}

	if c.MaxPriceCents > 0 {
		args = append(args, c.MaxPriceCents)
		where = append(where, fmt.Sprintf("f.price_cents <= $%d", len(args)))
	}

	if c.OnlyAvailable {
		where = append(where, "f.available_seats > 0")
	}

	sql := flightSelect + "\n\t WHERE " + strings.Join(where, " AND ") +
		"\n\t ORDER BY f.departure_at"

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	out := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return out, nil
}
