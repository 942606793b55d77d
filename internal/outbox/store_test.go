package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

type recordingExecer struct {
	queries []string
	args    [][]any
	err     error
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return nil, r.err
}

func TestStoreAppendsEventRow(t *testing.T) {
	exec := &recordingExecer{}
	s := NewStore(nil, "freewheel.events")
	s.db = exec

	event := domain.Event{
		RideID:    uuid.New(),
		BookingID: uuid.New(),
		Type:      domain.EventBookingRequested,
		CreatedAt: time.Unix(100, 0).UTC(),
	}
	require.NoError(t, s.Publish(context.Background(), event))

	require.Len(t, exec.args, 1)
	args := exec.args[0]
	require.Equal(t, "freewheel.events", args[0])
	require.Equal(t, event.CreatedAt, args[2])

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(args[1].([]byte), &decoded))
	require.Equal(t, event.RideID, decoded.RideID)
	require.Equal(t, event.BookingID, decoded.BookingID)
	require.Equal(t, domain.EventBookingRequested, decoded.Type)
}

func TestStoreRequiresDatabase(t *testing.T) {
	s := NewStore(nil, "freewheel.events")
	err := s.Publish(context.Background(), domain.Event{Type: domain.EventRidePublished})
	require.Error(t, err)
}

func TestStorePropagatesInsertError(t *testing.T) {
	exec := &recordingExecer{err: errors.New("connection reset")}
	s := NewStore(nil, "freewheel.events")
	s.db = exec

	err := s.Publish(context.Background(), domain.Event{Type: domain.EventRidePublished})
	require.ErrorContains(t, err, "connection reset")
}
