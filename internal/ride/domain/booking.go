package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is a one-shot state machine: pending is the initial
// state, accepted and rejected are terminal. The only transitions are
// pending→accepted and pending→rejected, both made by the ride's
// provider.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingAccepted BookingStatus = "accepted"
	BookingRejected BookingStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingAccepted || s == BookingRejected
}

// Decision is a provider's verdict on a pending booking.
type Decision = BookingStatus

// Booking is a seeker's request for one seat on a ride. It references
// the ride by id only; enrichment with ride details is a transport
// concern. A seat is held from the moment the booking is created and
// released only if the booking is rejected.
type Booking struct {
	ID        uuid.UUID     `json:"id"`
	RideID    uuid.UUID     `json:"ride_id"`
	SeekerID  uuid.UUID     `json:"seeker_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// BookingStore is the persistence contract for bookings. List results
// are ordered most-recently-created first.
type BookingStore interface {
	Create(ctx context.Context, booking Booking) (Booking, error)
	Get(ctx context.Context, id uuid.UUID) (Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (Booking, error)
	ListBySeeker(ctx context.Context, seekerID uuid.UUID) ([]Booking, error)
	ListByRideIDs(ctx context.Context, rideIDs []uuid.UUID) ([]Booking, error)
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]Booking, error)
}
