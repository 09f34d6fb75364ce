package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingInitiated BookingStatus = "INITIATED"
	BookingBooked    BookingStatus = "BOOKED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingBooked || s == BookingCancelled
}

// CanTransition reports whether from→to is an allowed booking transition.
// The only legal moves are INITIATED→BOOKED and INITIATED→CANCELLED.
func CanTransition(from, to BookingStatus) bool {
	if from != BookingInitiated {
		return false
	}
	return to == BookingBooked || to == BookingCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type City struct {
	ID   int64
	Name string
}

type Airport struct {
	Code string
	Name string
	City City
}

type Airplane struct {
	ID       int64
	Model    string
	Capacity int
}

type Flight struct {
	ID               int64
	Airplane         Airplane
	DepartureAirport Airport
	ArrivalAirport   Airport
	DepartureAt      time.Time
	ArrivalAt        time.Time
	PriceCents       int64
	AvailableSeats   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Booking is a claim against a flight's available seats. While INITIATED or
// BOOKED the claim holds Seats out of the flight's inventory.
type Booking struct {
	ID         uuid.UUID
	FlightID   int64
	UserID     int64
	Seats      int
	TotalCents int64
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Payment struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	UserID      int64
	AmountCents int64
	Status      PaymentStatus
	CreatedAt   time.Time
}
