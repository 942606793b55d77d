package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

const defaultIndexKey = "ride:origins"

// RedisIndex keeps active rides in a Redis GEO set keyed by pickup
// point so seekers can query "rides near me" with one command.
type RedisIndex struct {
	client redis.Cmdable
	key    string
}

// NewRedisIndex constructs a Redis-backed ride index.
func NewRedisIndex(client redis.Cmdable, key string) *RedisIndex {
	if key == "" {
		key = defaultIndexKey
	}
	return &RedisIndex{client: client, key: key}
}

// Add upserts the ride's pickup point.
func (r *RedisIndex) Add(ctx context.Context, rideID uuid.UUID, origin domain.GeoPoint) error {
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      rideID.String(),
		Longitude: origin.Lng,
		Latitude:  origin.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd ride: %w", err)
	}
	return nil
}

// Remove drops the ride from the index.
func (r *RedisIndex) Remove(ctx context.Context, rideID uuid.UUID) error {
	if err := r.client.ZRem(ctx, r.key, rideID.String()).Err(); err != nil {
		return fmt.Errorf("zrem ride: %w", err)
	}
	return nil
}

// Nearby returns up to limit ride ids within radiusKM of the origin,
// closest first.
func (r *RedisIndex) Nearby(ctx context.Context, origin domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("redis ride index not configured")
	}
	locations, err := r.client.GeoRadius(ctx, r.key, origin.Lng, origin.Lat, &redis.GeoRadiusQuery{
		Radius: radiusKM,
		Unit:   "km",
		Sort:   "ASC",
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(locations))
	for _, loc := range locations {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
