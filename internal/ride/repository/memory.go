package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

// MemoryRideStore is the reference RideStore used in tests and local
// runs. It is safe for concurrent use but performs no cross-record
// coordination; serializing seat mutations per ride is the
// arbitrator's job.
type MemoryRideStore struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]domain.Ride
}

// NewMemoryRideStore constructs an empty store.
func NewMemoryRideStore() *MemoryRideStore {
	return &MemoryRideStore{rides: make(map[uuid.UUID]domain.Ride)}
}

// Create stores the ride and returns it.
func (m *MemoryRideStore) Create(_ context.Context, ride domain.Ride) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
	return ride, nil
}

// Get retrieves a ride by id.
func (m *MemoryRideStore) Get(_ context.Context, id uuid.UUID) (domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	return ride, nil
}

// Update replaces the stored ride.
func (m *MemoryRideStore) Update(_ context.Context, ride domain.Ride) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	m.rides[ride.ID] = ride
	return ride, nil
}

// AdjustSeats applies a relative seat-count change, rejecting any
// result outside [0, SeatsTotal].
func (m *MemoryRideStore) AdjustSeats(_ context.Context, id uuid.UUID, delta int) (domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return domain.Ride{}, domain.ErrNotFound
	}
	next := ride.SeatsAvailable + delta
	if next < 0 || next > ride.SeatsTotal {
		return domain.Ride{}, domain.ErrConstraintViolation
	}
	ride.SeatsAvailable = next
	m.rides[id] = ride
	return ride, nil
}

// ListByProvider returns the ids of rides owned by the provider.
func (m *MemoryRideStore) ListByProvider(_ context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for _, ride := range m.rides {
		if ride.ProviderID == providerID {
			ids = append(ids, ride.ID)
		}
	}
	return ids, nil
}

// ListRidesByProvider returns full rides owned by the provider,
// newest first.
func (m *MemoryRideStore) ListRidesByProvider(_ context.Context, providerID uuid.UUID) ([]domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rides []domain.Ride
	for _, ride := range m.rides {
		if ride.ProviderID == providerID {
			rides = append(rides, ride)
		}
	}
	sort.Slice(rides, func(i, j int) bool { return rides[i].CreatedAt.After(rides[j].CreatedAt) })
	return rides, nil
}

type bookingRecord struct {
	booking domain.Booking
	seq     uint64
}

// MemoryBookingStore is the reference BookingStore.
type MemoryBookingStore struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]bookingRecord
	seq      uint64
}

// NewMemoryBookingStore constructs an empty store.
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: make(map[uuid.UUID]bookingRecord)}
}

// Create stores the booking and returns it.
func (m *MemoryBookingStore) Create(_ context.Context, booking domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.bookings[booking.ID] = bookingRecord{booking: booking, seq: m.seq}
	return booking, nil
}

// Get retrieves a booking by id.
func (m *MemoryBookingStore) Get(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return rec.booking, nil
}

// UpdateStatus persists a new status for the booking.
func (m *MemoryBookingStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	rec.booking.Status = status
	m.bookings[id] = rec
	return rec.booking, nil
}

// ListBySeeker returns the seeker's bookings, newest first.
func (m *MemoryBookingStore) ListBySeeker(_ context.Context, seekerID uuid.UUID) ([]domain.Booking, error) {
	return m.collect(func(b domain.Booking) bool { return b.SeekerID == seekerID }), nil
}

// ListByRideIDs returns bookings against any of the rides, newest
// first.
func (m *MemoryBookingStore) ListByRideIDs(_ context.Context, rideIDs []uuid.UUID) ([]domain.Booking, error) {
	wanted := make(map[uuid.UUID]struct{}, len(rideIDs))
	for _, id := range rideIDs {
		wanted[id] = struct{}{}
	}
	return m.collect(func(b domain.Booking) bool {
		_, ok := wanted[b.RideID]
		return ok
	}), nil
}

// ListByRide returns bookings for one ride, newest first.
func (m *MemoryBookingStore) ListByRide(_ context.Context, rideID uuid.UUID) ([]domain.Booking, error) {
	return m.collect(func(b domain.Booking) bool { return b.RideID == rideID }), nil
}

func (m *MemoryBookingStore) collect(match func(domain.Booking) bool) []domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var recs []bookingRecord
	for _, rec := range m.bookings {
		if match(rec.booking) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	bookings := make([]domain.Booking, len(recs))
	for i, rec := range recs {
		bookings[i] = rec.booking
	}
	return bookings
}
