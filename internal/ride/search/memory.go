package search

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

// MemoryIndex is an in-process ride index for tests and single-node
// runs without Redis.
type MemoryIndex struct {
	mu      sync.RWMutex
	origins map[uuid.UUID]domain.GeoPoint
}

// NewMemoryIndex constructs an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{origins: make(map[uuid.UUID]domain.GeoPoint)}
}

// Add upserts the ride's pickup point.
func (m *MemoryIndex) Add(_ context.Context, rideID uuid.UUID, origin domain.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.origins[rideID] = origin
	return nil
}

// Remove drops the ride from the index.
func (m *MemoryIndex) Remove(_ context.Context, rideID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.origins, rideID)
	return nil
}

// Nearby returns up to limit ride ids within radiusKM, closest first.
func (m *MemoryIndex) Nearby(_ context.Context, origin domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		id   uuid.UUID
		dist float64
	}
	var candidates []candidate
	for id, point := range m.origins {
		if d := haversineKM(origin, point); d <= radiusKM {
			candidates = append(candidates, candidate{id: id, dist: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

func haversineKM(a, b domain.GeoPoint) float64 {
	const earthRadiusKM = 6371.0
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
