package kafka

import (
	"time"

	"github.com/google/uuid"
)

// BookingEvent is published on every booking lifecycle transition.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  uuid.UUID `json:"booking_id"`
	FlightID   int64     `json:"flight_id"`
	UserID     int64     `json:"user_id"`
	Seats      int       `json:"seats"`
	TotalCents int64     `json:"total_cents"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
)

// PaymentResult arrives from the payment collaborator. Delivery is
// at-least-once; the handler must tolerate duplicates.
type PaymentResult struct {
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      int64     `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Succeeded   bool      `json:"succeeded"`
}
