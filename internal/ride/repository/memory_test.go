package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
	"github.com/niti14-code/FreeWheel/internal/ride/repository"
)

func TestAdjustSeatsRejectsOutOfRange(t *testing.T) {
	store := repository.NewMemoryRideStore()
	ctx := context.Background()
	ride, err := store.Create(ctx, domain.Ride{
		ID:             uuid.New(),
		ProviderID:     uuid.New(),
		SeatsTotal:     2,
		SeatsAvailable: 1,
		Status:         domain.RideActive,
		CreatedAt:      time.Unix(0, 0).UTC(),
	})
	require.NoError(t, err)

	// Below zero.
	_, err = store.AdjustSeats(ctx, ride.ID, -2)
	require.ErrorIs(t, err, domain.ErrConstraintViolation)

	// Above seats_total.
	_, err = store.AdjustSeats(ctx, ride.ID, 2)
	require.ErrorIs(t, err, domain.ErrConstraintViolation)

	// A rejected adjustment must not touch the count.
	got, err := store.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.SeatsAvailable)

	// The boundaries themselves are fine.
	got, err = store.AdjustSeats(ctx, ride.ID, -1)
	require.NoError(t, err)
	require.Equal(t, 0, got.SeatsAvailable)
	got, err = store.AdjustSeats(ctx, ride.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, got.SeatsAvailable)
}

func TestAdjustSeatsUnknownRide(t *testing.T) {
	store := repository.NewMemoryRideStore()
	_, err := store.AdjustSeats(context.Background(), uuid.New(), -1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
