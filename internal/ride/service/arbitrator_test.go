package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
	"github.com/niti14-code/FreeWheel/internal/ride/repository"
	"github.com/niti14-code/FreeWheel/internal/ride/service"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *stubPublisher) Publish(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubPublisher) types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]domain.EventType, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = s.t.Add(time.Millisecond)
	return s.t
}

type fixture struct {
	rides    *repository.MemoryRideStore
	bookings *repository.MemoryBookingStore
	events   *stubPublisher
	arb      *service.Arbitrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rides:    repository.NewMemoryRideStore(),
		bookings: repository.NewMemoryBookingStore(),
		events:   &stubPublisher{},
	}
	f.arb = service.NewArbitrator(f.rides, f.bookings, f.events, &stubClock{t: time.Unix(0, 0).UTC()})
	return f
}

func (f *fixture) seedRide(t *testing.T, providerID uuid.UUID, seats int) domain.Ride {
	t.Helper()
	ride, err := f.rides.Create(context.Background(), domain.Ride{
		ID:             uuid.New(),
		ProviderID:     providerID,
		SeatsTotal:     seats,
		SeatsAvailable: seats,
		Status:         domain.RideActive,
		CreatedAt:      time.Unix(0, 0).UTC(),
	})
	require.NoError(t, err)
	return ride
}

func seeker(id uuid.UUID) domain.Identity {
	return domain.Identity{ID: id, Role: domain.RoleSeeker}
}

func TestRequestBookingHoldsSeat(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	ride := f.seedRide(t, providerID, 2)

	booking, err := f.arb.RequestBooking(context.Background(), seeker(uuid.New()), ride.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingPending, booking.Status)
	require.Equal(t, ride.ID, booking.RideID)

	got, err := f.rides.Get(context.Background(), ride.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.SeatsAvailable)
	require.Equal(t, []domain.EventType{domain.EventBookingRequested}, f.events.types())
}

func TestRequestBookingForbiddenForPureProvider(t *testing.T) {
	f := newFixture(t)
	ride := f.seedRide(t, uuid.New(), 2)

	_, err := f.arb.RequestBooking(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleProvider}, ride.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.rides.Get(context.Background(), ride.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.SeatsAvailable)
}

func TestRequestBookingAllowedForDualRole(t *testing.T) {
	f := newFixture(t)
	ride := f.seedRide(t, uuid.New(), 1)

	_, err := f.arb.RequestBooking(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleBoth}, ride.ID)
	require.NoError(t, err)
}

func TestRequestBookingRideNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.arb.RequestBooking(context.Background(), seeker(uuid.New()), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestBookingNonActiveRide(t *testing.T) {
	f := newFixture(t)
	ride := f.seedRide(t, uuid.New(), 3)
	ride.Status = domain.RideCancelled
	_, err := f.rides.Update(context.Background(), ride)
	require.NoError(t, err)

	_, err = f.arb.RequestBooking(context.Background(), seeker(uuid.New()), ride.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)
}

func TestSeatLifecycleScenario(t *testing.T) {
	// R1 has 2 seats. A and B book, C is turned away. Rejecting A frees
	// the seat and C gets in; accepting B leaves the count alone.
	f := newFixture(t)
	providerID := uuid.New()
	provider := domain.Identity{ID: providerID, Role: domain.RoleProvider}
	ride := f.seedRide(t, providerID, 2)
	ctx := context.Background()

	bookingA, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)
	bookingB, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)

	seekerC := seeker(uuid.New())
	_, err = f.arb.RequestBooking(ctx, seekerC, ride.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	rejected, err := f.arb.RespondToBooking(ctx, provider, bookingA.ID, domain.BookingRejected)
	require.NoError(t, err)
	require.Equal(t, domain.BookingRejected, rejected.Status)

	got, err := f.rides.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.SeatsAvailable)

	_, err = f.arb.RequestBooking(ctx, seekerC, ride.ID)
	require.NoError(t, err)

	accepted, err := f.arb.RespondToBooking(ctx, provider, bookingB.ID, domain.BookingAccepted)
	require.NoError(t, err)
	require.Equal(t, domain.BookingAccepted, accepted.Status)

	got, err = f.rides.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.SeatsAvailable)
}

func TestRespondToBookingAuthorization(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	ride := f.seedRide(t, providerID, 1)
	ctx := context.Background()

	booking, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)

	stranger := domain.Identity{ID: uuid.New(), Role: domain.RoleProvider}
	_, err = f.arb.RespondToBooking(ctx, stranger, booking.ID, domain.BookingAccepted)
	require.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingPending, got.Status)
}

func TestRespondToBookingTerminalIsOneShot(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	provider := domain.Identity{ID: providerID, Role: domain.RoleProvider}
	ride := f.seedRide(t, providerID, 1)
	ctx := context.Background()

	booking, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)
	_, err = f.arb.RespondToBooking(ctx, provider, booking.ID, domain.BookingRejected)
	require.NoError(t, err)

	before, err := f.rides.Get(ctx, ride.ID)
	require.NoError(t, err)

	_, err = f.arb.RespondToBooking(ctx, provider, booking.ID, domain.BookingRejected)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.arb.RespondToBooking(ctx, provider, booking.ID, domain.BookingAccepted)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	after, err := f.rides.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, before.SeatsAvailable, after.SeatsAvailable)
}

func TestRespondToBookingRejectsUnknownDecision(t *testing.T) {
	f := newFixture(t)
	_, err := f.arb.RespondToBooking(context.Background(), seeker(uuid.New()), uuid.New(), domain.BookingPending)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRespondToBookingNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.arb.RespondToBooking(context.Background(), seeker(uuid.New()), uuid.New(), domain.BookingAccepted)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentRequestsForLastSeat(t *testing.T) {
	f := newFixture(t)
	ride := f.seedRide(t, uuid.New(), 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
		}(i)
	}
	wg.Wait()

	var successes, capacityFailures int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, domain.ErrInsufficientCapacity)
			capacityFailures++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, capacityFailures)

	got, err := f.rides.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.SeatsAvailable)
}

func TestConcurrentRequestsNeverOverbook(t *testing.T) {
	const seats = 4
	const callers = 16
	f := newFixture(t)
	ride := f.seedRide(t, uuid.New(), seats)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, domain.ErrInsufficientCapacity)
		}
	}
	require.Equal(t, seats, successes)

	got, err := f.rides.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.SeatsAvailable)

	// Seat accounting invariant: seatsAvailable == seatsTotal - held.
	held, err := f.bookings.ListByRide(ctx, ride.ID)
	require.NoError(t, err)
	var outstanding int
	for _, b := range held {
		if b.Status == domain.BookingPending || b.Status == domain.BookingAccepted {
			outstanding++
		}
	}
	require.Equal(t, got.SeatsTotal-got.SeatsAvailable, outstanding)
}

func TestListForSeekerNewestFirst(t *testing.T) {
	f := newFixture(t)
	rideA := f.seedRide(t, uuid.New(), 2)
	rideB := f.seedRide(t, uuid.New(), 2)
	ctx := context.Background()

	caller := seeker(uuid.New())
	first, err := f.arb.RequestBooking(ctx, caller, rideA.ID)
	require.NoError(t, err)
	second, err := f.arb.RequestBooking(ctx, caller, rideB.ID)
	require.NoError(t, err)

	// Another seeker's booking must not leak in.
	_, err = f.arb.RequestBooking(ctx, seeker(uuid.New()), rideA.ID)
	require.NoError(t, err)

	bookings, err := f.arb.ListForSeeker(ctx, caller)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	require.Equal(t, second.ID, bookings[0].ID)
	require.Equal(t, first.ID, bookings[1].ID)
}

func TestListForProviderSpansOwnedRides(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	provider := domain.Identity{ID: providerID, Role: domain.RoleProvider}
	rideA := f.seedRide(t, providerID, 2)
	rideB := f.seedRide(t, providerID, 2)
	other := f.seedRide(t, uuid.New(), 2)
	ctx := context.Background()

	_, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), rideA.ID)
	require.NoError(t, err)
	_, err = f.arb.RequestBooking(ctx, seeker(uuid.New()), rideB.ID)
	require.NoError(t, err)
	_, err = f.arb.RequestBooking(ctx, seeker(uuid.New()), other.ID)
	require.NoError(t, err)

	bookings, err := f.arb.ListForProvider(ctx, provider)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	for _, b := range bookings {
		require.Contains(t, []uuid.UUID{rideA.ID, rideB.ID}, b.RideID)
	}
}

func TestListForProviderWithoutRides(t *testing.T) {
	f := newFixture(t)
	bookings, err := f.arb.ListForProvider(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleProvider})
	require.NoError(t, err)
	require.Empty(t, bookings)
}

func TestListForRideOwnerOnly(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	ride := f.seedRide(t, providerID, 2)
	ctx := context.Background()

	_, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)

	_, err = f.arb.ListForRide(ctx, domain.Identity{ID: uuid.New(), Role: domain.RoleProvider}, ride.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.arb.ListForRide(ctx, domain.Identity{ID: providerID, Role: domain.RoleProvider}, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)

	bookings, err := f.arb.ListForRide(ctx, domain.Identity{ID: providerID, Role: domain.RoleProvider}, ride.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
}

func TestDecisionEventsPublished(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	provider := domain.Identity{ID: providerID, Role: domain.RoleProvider}
	ride := f.seedRide(t, providerID, 2)
	ctx := context.Background()

	a, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)
	b, err := f.arb.RequestBooking(ctx, seeker(uuid.New()), ride.ID)
	require.NoError(t, err)

	_, err = f.arb.RespondToBooking(ctx, provider, a.ID, domain.BookingAccepted)
	require.NoError(t, err)
	_, err = f.arb.RespondToBooking(ctx, provider, b.ID, domain.BookingRejected)
	require.NoError(t, err)

	require.Equal(t, []domain.EventType{
		domain.EventBookingRequested,
		domain.EventBookingRequested,
		domain.EventBookingAccepted,
		domain.EventBookingRejected,
	}, f.events.types())
}
