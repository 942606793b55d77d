package service

import (
	"sync"

	"github.com/google/uuid"
)

// rideLocks serializes seat mutations per ride. Unrelated rides never
// contend: each ride id maps to its own mutex, created on first use.
// Entries are never evicted: the map grows with the number of
// distinct rides seen, a few dozen bytes per ride.
type rideLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newRideLocks() *rideLocks {
	return &rideLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// acquire locks the ride's mutex and returns the release func.
func (r *rideLocks) acquire(rideID uuid.UUID) func() {
	r.mu.Lock()
	lock, ok := r.locks[rideID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[rideID] = lock
	}
	r.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
