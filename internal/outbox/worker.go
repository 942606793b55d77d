package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	outboxPublishTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Total number of successfully published outbox entries.",
	})
	outboxFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_fail_total",
		Help: "Total number of outbox publish failures after exhausting retries.",
	})
	outboxLagSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_lag_seconds",
		Help: "Age of the oldest processed outbox entry in seconds.",
	})
)

// DispatcherConfig defines tunables for the dispatcher.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	RetryMax     int
}

type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Dispatcher drains unpublished ride and booking events from the
// database and forwards them to NATS, giving deployments that write
// events transactionally an at-least-once delivery path.
type Dispatcher struct {
	db        *sql.DB
	publisher natsPublisher
	logger    *zap.Logger
	cfg       DispatcherConfig
	tracer    trace.Tracer
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(db *sql.DB, conn *nats.Conn, logger *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		db:     db,
		logger: logger,
		cfg:    cfg,
		tracer: otel.Tracer("freewheel.outbox"),
	}
	if conn != nil {
		d.publisher = conn
	}
	return d
}

// Run starts the polling loop until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.db == nil || d.publisher == nil {
		return errors.New("outbox dispatcher requires database and NATS connection")
	}
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := d.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox batch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type entry struct {
	ID        int64
	Subject   string
	Payload   []byte
	CreatedAt time.Time
}

func (d *Dispatcher) processOnce(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "outbox.batch")
	defer span.End()
	entries, tx, err := d.loadPending(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return tx.Commit()
	}
	ids := make([]int64, 0, len(entries))
	maxLag := 0.0
	for _, e := range entries {
		if err := d.publishWithRetry(ctx, e); err != nil {
			_ = tx.Rollback()
			return err
		}
		ids = append(ids, e.ID)
		outboxPublishTotal.Inc()
		if lag := time.Since(e.CreatedAt).Seconds(); lag > maxLag {
			maxLag = lag
		}
	}
	outboxLagSeconds.Set(maxLag)
	if err := d.markPublished(ctx, tx, ids); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *Dispatcher) loadPending(ctx context.Context) ([]entry, *sql.Tx, error) {
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	rows, err := tx.QueryContext(ctx, `SELECT id, subject, payload, created_at FROM outbox WHERE published = false ORDER BY id LIMIT $1 FOR UPDATE SKIP LOCKED`, d.cfg.BatchSize)
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.ID, &e.Subject, &e.Payload, &e.CreatedAt); err != nil {
			_ = tx.Rollback()
			return nil, nil, fmt.Errorf("scan outbox: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, tx, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("UPDATE outbox SET published = true WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, e entry) error {
	ctx, span := d.tracer.Start(ctx, "outbox.publish")
	defer span.End()
	if e.Subject == "" {
		return errors.New("outbox entry missing subject")
	}
	msg := nats.NewMsg(e.Subject)
	msg.Data = e.Payload
	if sc := span.SpanContext(); sc.IsValid() {
		msg.Header.Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID(), sc.SpanID()))
	}
	var attempt int
	for {
		attempt++
		err := d.publisher.PublishMsg(msg)
		if err == nil {
			return nil
		}
		d.logger.Warn("publish failed", zap.Error(err), zap.Int("attempt", attempt), zap.Int64("outbox_id", e.ID))
		if attempt >= d.cfg.RetryMax {
			outboxFailTotal.Inc()
			return fmt.Errorf("publish outbox %d: %w", e.ID, err)
		}
		backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
