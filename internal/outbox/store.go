package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements domain.EventPublisher by appending events to the
// outbox table in the service database. It never talks to the broker;
// the Dispatcher drains the table to NATS, so an event committed here
// survives a broker outage.
type Store struct {
	db      execer
	subject string
}

// NewStore builds an outbox-backed event publisher.
func NewStore(db *sql.DB, subject string) *Store {
	s := &Store{subject: subject}
	if db != nil {
		s.db = db
	}
	return s
}

// Publish appends the event as an unpublished outbox row.
func (s *Store) Publish(ctx context.Context, event domain.Event) error {
	if s.db == nil {
		return errors.New("outbox store requires a database")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (subject, payload, created_at) VALUES ($1, $2, $3)`,
		s.subject, payload, event.CreatedAt); err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

var _ domain.EventPublisher = (*Store)(nil)
