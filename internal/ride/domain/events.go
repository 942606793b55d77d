package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType labels lifecycle notifications emitted by the services.
type EventType string

const (
	EventRidePublished    EventType = "RidePublished"
	EventRideCancelled    EventType = "RideCancelled"
	EventBookingRequested EventType = "BookingRequested"
	EventBookingAccepted  EventType = "BookingAccepted"
	EventBookingRejected  EventType = "BookingRejected"
)

// Event is a fact about a ride or booking, published after the state
// change has been persisted. Delivery is best effort at the service
// level; deployments needing at-least-once run the outbox dispatcher.
type Event struct {
	RideID    uuid.UUID      `json:"ride_id"`
	BookingID uuid.UUID      `json:"booking_id,omitempty"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventPublisher pushes events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
