package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

// GeoIndex abstracts spatial lookup of active rides by pickup point.
type GeoIndex interface {
	Add(ctx context.Context, rideID uuid.UUID, origin domain.GeoPoint) error
	Remove(ctx context.Context, rideID uuid.UUID) error
	Nearby(ctx context.Context, origin domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error)
}

// Rides handles ride publication and discovery. It carries no seat
// arbitration logic; seat counts are only ever touched through the
// Arbitrator.
type Rides struct {
	store  domain.RideStore
	index  GeoIndex
	events domain.EventPublisher
	clock  domain.Clock
}

// NewRides constructs the ride service. Index and events may be nil;
// search is then unavailable and events are dropped.
func NewRides(store domain.RideStore, index GeoIndex, events domain.EventPublisher, clock domain.Clock) *Rides {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Rides{store: store, index: index, events: events, clock: clock}
}

// PublishRideInput is the payload for publishing a ride.
type PublishRideInput struct {
	Pickup      domain.GeoPoint
	PickupLabel string
	Drop        domain.GeoPoint
	DropLabel   string
	DepartAt    time.Time
	Seats       int
	CostPerSeat int64
}

// PublishRide creates an active ride owned by the caller with its full
// seat inventory available.
func (r *Rides) PublishRide(ctx context.Context, caller domain.Identity, input PublishRideInput) (domain.Ride, error) {
	if !caller.Role.Can(domain.PermPublishRide) {
		return domain.Ride{}, fmt.Errorf("publish ride: %w", domain.ErrForbidden)
	}
	if input.Seats < 1 {
		return domain.Ride{}, fmt.Errorf("seats must be positive: %w", domain.ErrInvalidInput)
	}
	if input.CostPerSeat < 0 {
		return domain.Ride{}, fmt.Errorf("cost must not be negative: %w", domain.ErrInvalidInput)
	}

	ride := domain.Ride{
		ID:             uuid.New(),
		ProviderID:     caller.ID,
		Pickup:         input.Pickup,
		PickupLabel:    input.PickupLabel,
		Drop:           input.Drop,
		DropLabel:      input.DropLabel,
		DepartAt:       input.DepartAt,
		SeatsTotal:     input.Seats,
		SeatsAvailable: input.Seats,
		CostPerSeat:    input.CostPerSeat,
		Status:         domain.RideActive,
		CreatedAt:      r.clock.Now(),
	}
	created, err := r.store.Create(ctx, ride)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("create ride: %w", err)
	}
	if r.index != nil {
		if err := r.index.Add(ctx, created.ID, created.Pickup); err != nil {
			return domain.Ride{}, fmt.Errorf("index ride: %w", err)
		}
	}
	r.publish(ctx, domain.Event{
		RideID:    created.ID,
		Type:      domain.EventRidePublished,
		Payload:   map[string]any{"provider_id": caller.ID.String(), "seats": created.SeatsTotal},
		CreatedAt: r.clock.Now(),
	})
	return created, nil
}

// GetRide retrieves one ride.
func (r *Rides) GetRide(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	return r.store.Get(ctx, id)
}

// ListMyRides returns the caller's published rides, newest first.
func (r *Rides) ListMyRides(ctx context.Context, caller domain.Identity) ([]domain.Ride, error) {
	return r.store.ListRidesByProvider(ctx, caller.ID)
}

// SearchRides returns active rides with seats left whose pickup lies
// within radiusKM of the origin, closest first. When a date is given,
// only rides departing that calendar day (UTC) match.
func (r *Rides) SearchRides(ctx context.Context, origin domain.GeoPoint, radiusKM float64, date *time.Time, limit int) ([]domain.Ride, error) {
	if r.index == nil {
		return nil, fmt.Errorf("search unavailable: %w", domain.ErrInvalidInput)
	}
	if radiusKM <= 0 {
		radiusKM = 5
	}
	if limit <= 0 {
		limit = 20
	}
	ids, err := r.index.Nearby(ctx, origin, radiusKM, limit)
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	var rides []domain.Ride
	for _, id := range ids {
		ride, err := r.store.Get(ctx, id)
		if err != nil {
			// Index entries can outlive their ride; skip stale hits.
			continue
		}
		if ride.Status != domain.RideActive || ride.SeatsAvailable < 1 {
			continue
		}
		if date != nil && !sameDay(ride.DepartAt, *date) {
			continue
		}
		rides = append(rides, ride)
	}
	return rides, nil
}

// CancelRide marks the caller's ride cancelled and drops it from the
// search index. Existing bookings keep their state; the arbitrator
// refuses new requests against a non-active ride.
func (r *Rides) CancelRide(ctx context.Context, caller domain.Identity, id uuid.UUID) (domain.Ride, error) {
	ride, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("load ride: %w", err)
	}
	if ride.ProviderID != caller.ID {
		return domain.Ride{}, fmt.Errorf("cancel ride: %w", domain.ErrForbidden)
	}
	ride.Status = domain.RideCancelled
	updated, err := r.store.Update(ctx, ride)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("update ride: %w", err)
	}
	if r.index != nil {
		_ = r.index.Remove(ctx, id)
	}
	r.publish(ctx, domain.Event{
		RideID:    id,
		Type:      domain.EventRideCancelled,
		CreatedAt: r.clock.Now(),
	})
	return updated, nil
}

func (r *Rides) publish(ctx context.Context, event domain.Event) {
	if r.events == nil {
		return
	}
	_ = r.events.Publish(ctx, event)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
