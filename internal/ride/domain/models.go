package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RideStatus tracks the overall lifecycle of a published ride. Booking
// arbitration only ever reads it; the ride service owns transitions.
type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ride is a provider-published trip with a fixed seat inventory.
// SeatsAvailable is the only field the booking arbitrator mutates, and
// it always stays within [0, SeatsTotal].
type Ride struct {
	ID             uuid.UUID  `json:"id"`
	ProviderID     uuid.UUID  `json:"provider_id"`
	Pickup         GeoPoint   `json:"pickup"`
	PickupLabel    string     `json:"pickup_label"`
	Drop           GeoPoint   `json:"drop"`
	DropLabel      string     `json:"drop_label"`
	DepartAt       time.Time  `json:"depart_at"`
	SeatsTotal     int        `json:"seats_total"`
	SeatsAvailable int        `json:"seats_available"`
	CostPerSeat    int64      `json:"cost_per_seat"`
	Status         RideStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RideStore is the persistence contract for rides. AdjustSeats applies
// a relative seat-count change and must reject any result outside
// [0, SeatsTotal] with ErrConstraintViolation. Stores hold no business
// rules beyond that bound check.
type RideStore interface {
	Create(ctx context.Context, ride Ride) (Ride, error)
	Get(ctx context.Context, id uuid.UUID) (Ride, error)
	Update(ctx context.Context, ride Ride) (Ride, error)
	AdjustSeats(ctx context.Context, id uuid.UUID, delta int) (Ride, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error)
	ListRidesByProvider(ctx context.Context, providerID uuid.UUID) ([]Ride, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
