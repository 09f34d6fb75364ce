package catalog

import "errors"

var (
	ErrFlightNotFound  = errors.New("flight not found")
	ErrUnknownAirport  = errors.New("unknown airport code")
	ErrMissingCriteria = errors.New("departure and arrival airport codes are required")
)
