package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

// Arbitrator owns booking/seat consistency. It is the only component
// that mutates bookings or seat counts; the stores underneath hold no
// business rules. All seat mutations for one ride run inside that
// ride's critical section, so holds and releases can never interleave
// into an over-booked state.
type Arbitrator struct {
	rides    domain.RideStore
	bookings domain.BookingStore
	events   domain.EventPublisher
	clock    domain.Clock
	locks    *rideLocks
}

// NewArbitrator constructs an Arbitrator with its collaborators. The
// event publisher may be nil when no broker is configured.
func NewArbitrator(rides domain.RideStore, bookings domain.BookingStore, events domain.EventPublisher, clock domain.Clock) *Arbitrator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Arbitrator{rides: rides, bookings: bookings, events: events, clock: clock, locks: newRideLocks()}
}

// RequestBooking creates a pending booking for the caller and holds
// one seat on the ride. The hold happens at request time: rejection
// later returns the seat. The seat decrement and the booking insert
// form one logical unit; a failed insert rolls the decrement back.
func (a *Arbitrator) RequestBooking(ctx context.Context, caller domain.Identity, rideID uuid.UUID) (domain.Booking, error) {
	if !caller.Role.Can(domain.PermBookSeat) {
		bookingRequestsTotal.WithLabelValues("forbidden").Inc()
		return domain.Booking{}, fmt.Errorf("request booking: %w", domain.ErrForbidden)
	}

	release := a.locks.acquire(rideID)
	defer release()
	timer := time.Now()
	defer func() { arbitrationSeconds.Observe(time.Since(timer).Seconds()) }()

	ride, err := a.rides.Get(ctx, rideID)
	if err != nil {
		bookingRequestsTotal.WithLabelValues("not_found").Inc()
		return domain.Booking{}, fmt.Errorf("load ride: %w", err)
	}
	if ride.Status != domain.RideActive || ride.SeatsAvailable < 1 {
		bookingRequestsTotal.WithLabelValues("no_capacity").Inc()
		return domain.Booking{}, fmt.Errorf("request booking: %w", domain.ErrInsufficientCapacity)
	}

	if _, err := a.rides.AdjustSeats(ctx, rideID, -1); err != nil {
		bookingRequestsTotal.WithLabelValues("error").Inc()
		return domain.Booking{}, fmt.Errorf("hold seat: %w", err)
	}

	booking := domain.Booking{
		ID:        uuid.New(),
		RideID:    rideID,
		SeekerID:  caller.ID,
		Status:    domain.BookingPending,
		CreatedAt: a.clock.Now(),
	}
	created, err := a.bookings.Create(ctx, booking)
	if err != nil {
		// Release the held seat so no seat stays reserved without a
		// pending booking behind it.
		if _, rollbackErr := a.rides.AdjustSeats(ctx, rideID, 1); rollbackErr != nil {
			return domain.Booking{}, fmt.Errorf("create booking: %w (seat rollback failed: %v)", err, rollbackErr)
		}
		bookingRequestsTotal.WithLabelValues("error").Inc()
		return domain.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	bookingRequestsTotal.WithLabelValues("ok").Inc()
	a.publish(ctx, domain.Event{
		RideID:    rideID,
		BookingID: created.ID,
		Type:      domain.EventBookingRequested,
		Payload:   map[string]any{"seeker_id": caller.ID.String()},
		CreatedAt: a.clock.Now(),
	})
	return created, nil
}

// RespondToBooking applies the provider's verdict to a pending
// booking. Accepting keeps the seat held at request time; rejecting
// returns it. The status write and any seat release are one logical
// unit.
func (a *Arbitrator) RespondToBooking(ctx context.Context, caller domain.Identity, bookingID uuid.UUID, decision domain.Decision) (domain.Booking, error) {
	if decision != domain.BookingAccepted && decision != domain.BookingRejected {
		return domain.Booking{}, fmt.Errorf("decision %q: %w", decision, domain.ErrInvalidInput)
	}

	booking, err := a.bookings.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("load booking: %w", err)
	}

	release := a.locks.acquire(booking.RideID)
	defer release()
	timer := time.Now()
	defer func() { arbitrationSeconds.Observe(time.Since(timer).Seconds()) }()

	// Re-read under the lock: another responder may have decided the
	// booking between the first load and lock acquisition.
	booking, err = a.bookings.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	ride, err := a.rides.Get(ctx, booking.RideID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("load ride: %w", err)
	}
	if caller.ID != ride.ProviderID {
		return domain.Booking{}, fmt.Errorf("respond to booking: %w", domain.ErrForbidden)
	}
	if booking.Status != domain.BookingPending {
		return domain.Booking{}, fmt.Errorf("respond to booking: %w", domain.ErrInvalidState)
	}

	if decision == domain.BookingRejected {
		if _, err := a.rides.AdjustSeats(ctx, booking.RideID, 1); err != nil {
			return domain.Booking{}, fmt.Errorf("release seat: %w", err)
		}
	}
	updated, err := a.bookings.UpdateStatus(ctx, bookingID, decision)
	if err != nil {
		if decision == domain.BookingRejected {
			if _, rollbackErr := a.rides.AdjustSeats(ctx, booking.RideID, -1); rollbackErr != nil {
				return domain.Booking{}, fmt.Errorf("update status: %w (seat rollback failed: %v)", err, rollbackErr)
			}
		}
		return domain.Booking{}, fmt.Errorf("update status: %w", err)
	}

	bookingDecisionsTotal.WithLabelValues(string(decision)).Inc()
	eventType := domain.EventBookingAccepted
	if decision == domain.BookingRejected {
		eventType = domain.EventBookingRejected
	}
	a.publish(ctx, domain.Event{
		RideID:    updated.RideID,
		BookingID: updated.ID,
		Type:      eventType,
		CreatedAt: a.clock.Now(),
	})
	return updated, nil
}

// ListForSeeker returns the caller's own bookings, newest first.
func (a *Arbitrator) ListForSeeker(ctx context.Context, caller domain.Identity) ([]domain.Booking, error) {
	return a.bookings.ListBySeeker(ctx, caller.ID)
}

// ListForProvider returns bookings against any ride the caller owns,
// newest first. Ride ids are resolved once, then bookings fetched in
// one query.
func (a *Arbitrator) ListForProvider(ctx context.Context, caller domain.Identity) ([]domain.Booking, error) {
	rideIDs, err := a.rides.ListByProvider(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	if len(rideIDs) == 0 {
		return nil, nil
	}
	return a.bookings.ListByRideIDs(ctx, rideIDs)
}

// ListForRide returns the bookings on one ride, newest first. Only the
// ride's provider may call it.
func (a *Arbitrator) ListForRide(ctx context.Context, caller domain.Identity, rideID uuid.UUID) ([]domain.Booking, error) {
	ride, err := a.rides.Get(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("load ride: %w", err)
	}
	if caller.ID != ride.ProviderID {
		return nil, fmt.Errorf("list for ride: %w", domain.ErrForbidden)
	}
	return a.bookings.ListByRide(ctx, rideID)
}

func (a *Arbitrator) publish(ctx context.Context, event domain.Event) {
	if a.events == nil {
		return
	}
	_ = a.events.Publish(ctx, event)
}
