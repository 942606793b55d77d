package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyPublisher struct {
	failFor  int
	attempts int
	got      []*nats.Msg
}

func (f *flakyPublisher) PublishMsg(msg *nats.Msg) error {
	f.attempts++
	if f.attempts <= f.failFor {
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, msg)
	return nil
}

func TestRunRequiresCollaborators(t *testing.T) {
	d := NewDispatcher(nil, nil, zap.NewNop(), DispatcherConfig{})
	err := d.Run(context.Background())
	require.Error(t, err)
}

func TestPublishWithRetryEventuallySucceeds(t *testing.T) {
	pub := &flakyPublisher{failFor: 2}
	d := NewDispatcher(nil, nil, zap.NewNop(), DispatcherConfig{RetryMax: 5})
	d.publisher = pub

	err := d.publishWithRetry(context.Background(), entry{
		ID:        1,
		Subject:   "freewheel.events",
		Payload:   []byte(`{"type":"BookingRequested"}`),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, pub.attempts)
	require.Len(t, pub.got, 1)
	require.Equal(t, []byte(`{"type":"BookingRequested"}`), pub.got[0].Data)
}

func TestPublishWithRetryGivesUpAfterMax(t *testing.T) {
	pub := &flakyPublisher{failFor: 10}
	d := NewDispatcher(nil, nil, zap.NewNop(), DispatcherConfig{RetryMax: 3})
	d.publisher = pub

	err := d.publishWithRetry(context.Background(), entry{ID: 7, Subject: "freewheel.events"})
	require.Error(t, err)
	require.Equal(t, 3, pub.attempts)
}

func TestPublishWithRetryRejectsMissingSubject(t *testing.T) {
	d := NewDispatcher(nil, nil, zap.NewNop(), DispatcherConfig{})
	d.publisher = &flakyPublisher{}
	err := d.publishWithRetry(context.Background(), entry{ID: 2})
	require.Error(t, err)
}

func TestPublishWithRetryStopsOnCancel(t *testing.T) {
	pub := &flakyPublisher{failFor: 10}
	d := NewDispatcher(nil, nil, zap.NewNop(), DispatcherConfig{RetryMax: 10})
	d.publisher = pub

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.publishWithRetry(ctx, entry{ID: 3, Subject: "freewheel.events"})
	require.ErrorIs(t, err, context.Canceled)
}
