package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/niti14-code/FreeWheel/internal/ride/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rides (
    id              UUID PRIMARY KEY,
    provider_id     UUID NOT NULL,
    pickup_lat      DOUBLE PRECISION NOT NULL,
    pickup_lng      DOUBLE PRECISION NOT NULL,
    pickup_label    TEXT NOT NULL DEFAULT '',
    drop_lat        DOUBLE PRECISION NOT NULL,
    drop_lng        DOUBLE PRECISION NOT NULL,
    drop_label      TEXT NOT NULL DEFAULT '',
    depart_at       TIMESTAMPTZ NOT NULL,
    seats_total     INT NOT NULL,
    seats_available INT NOT NULL,
    cost_per_seat   BIGINT NOT NULL,
    status          TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    CONSTRAINT seats_in_range CHECK (seats_available BETWEEN 0 AND seats_total)
);
CREATE INDEX IF NOT EXISTS rides_provider_idx ON rides (provider_id);

CREATE TABLE IF NOT EXISTS bookings (
    id         UUID PRIMARY KEY,
    ride_id    UUID NOT NULL REFERENCES rides (id),
    seeker_id  UUID NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bookings_ride_idx ON bookings (ride_id);
CREATE INDEX IF NOT EXISTS bookings_seeker_idx ON bookings (seeker_id);

CREATE TABLE IF NOT EXISTS outbox (
    id         BIGSERIAL PRIMARY KEY,
    subject    TEXT NOT NULL,
    payload    JSONB NOT NULL,
    published  BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (id) WHERE published = false;
`

// EnsureSchema creates the ride, booking, and outbox tables if they
// are absent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const rideColumns = `id, provider_id, pickup_lat, pickup_lng, pickup_label, drop_lat, drop_lng, drop_label, depart_at, seats_total, seats_available, cost_per_seat, status, created_at`

// PostgresRideStore implements domain.RideStore over database/sql.
type PostgresRideStore struct {
	db *sql.DB
}

// NewPostgresRideStore wraps an open connection pool.
func NewPostgresRideStore(db *sql.DB) *PostgresRideStore {
	return &PostgresRideStore{db: db}
}

func (s *PostgresRideStore) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rides (`+rideColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		ride.ID, ride.ProviderID, ride.Pickup.Lat, ride.Pickup.Lng, ride.PickupLabel,
		ride.Drop.Lat, ride.Drop.Lng, ride.DropLabel, ride.DepartAt,
		ride.SeatsTotal, ride.SeatsAvailable, ride.CostPerSeat, ride.Status, ride.CreatedAt)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("insert ride: %w", err)
	}
	return ride, nil
}

func (s *PostgresRideStore) Get(ctx context.Context, id uuid.UUID) (domain.Ride, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (s *PostgresRideStore) Update(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rides SET pickup_lat=$2, pickup_lng=$3, pickup_label=$4, drop_lat=$5, drop_lng=$6, drop_label=$7,
		        depart_at=$8, cost_per_seat=$9, status=$10 WHERE id=$1`,
		ride.ID, ride.Pickup.Lat, ride.Pickup.Lng, ride.PickupLabel,
		ride.Drop.Lat, ride.Drop.Lng, ride.DropLabel, ride.DepartAt, ride.CostPerSeat, ride.Status)
	if err != nil {
		return domain.Ride{}, fmt.Errorf("update ride: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Ride{}, domain.ErrNotFound
	}
	return s.Get(ctx, ride.ID)
}

// AdjustSeats applies the delta in a single guarded UPDATE so the
// bound check and the write cannot be split by a concurrent writer.
func (s *PostgresRideStore) AdjustSeats(ctx context.Context, id uuid.UUID, delta int) (domain.Ride, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE rides SET seats_available = seats_available + $2
		  WHERE id = $1 AND seats_available + $2 BETWEEN 0 AND seats_total
		 RETURNING `+rideColumns, id, delta)
	ride, err := scanRide(row)
	if errors.Is(err, domain.ErrNotFound) {
		// Distinguish a missing ride from a rejected adjustment.
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return domain.Ride{}, domain.ErrConstraintViolation
		}
		return domain.Ride{}, domain.ErrNotFound
	}
	return ride, err
}

func (s *PostgresRideStore) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM rides WHERE provider_id = $1`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list ride ids: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ride id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresRideStore) ListRidesByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.Ride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE provider_id = $1 ORDER BY created_at DESC, id DESC`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()
	var rides []domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (domain.Ride, error) {
	var ride domain.Ride
	err := row.Scan(&ride.ID, &ride.ProviderID, &ride.Pickup.Lat, &ride.Pickup.Lng, &ride.PickupLabel,
		&ride.Drop.Lat, &ride.Drop.Lng, &ride.DropLabel, &ride.DepartAt,
		&ride.SeatsTotal, &ride.SeatsAvailable, &ride.CostPerSeat, &ride.Status, &ride.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ride{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ride{}, fmt.Errorf("scan ride: %w", err)
	}
	return ride, nil
}

// PostgresBookingStore implements domain.BookingStore over database/sql.
type PostgresBookingStore struct {
	db *sql.DB
}

// NewPostgresBookingStore wraps an open connection pool.
func NewPostgresBookingStore(db *sql.DB) *PostgresBookingStore {
	return &PostgresBookingStore{db: db}
}

const bookingColumns = `id, ride_id, seeker_id, status, created_at`

func (s *PostgresBookingStore) Create(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES ($1,$2,$3,$4,$5)`,
		booking.ID, booking.RideID, booking.SeekerID, booking.Status, booking.CreatedAt)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	return booking, nil
}

func (s *PostgresBookingStore) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (s *PostgresBookingStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1 RETURNING `+bookingColumns, id, status)
	return scanBooking(row)
}

func (s *PostgresBookingStore) ListBySeeker(ctx context.Context, seekerID uuid.UUID) ([]domain.Booking, error) {
	return s.query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE seeker_id = $1 ORDER BY created_at DESC, id DESC`, seekerID)
}

func (s *PostgresBookingStore) ListByRideIDs(ctx context.Context, rideIDs []uuid.UUID) ([]domain.Booking, error) {
	if len(rideIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(rideIDs))
	args := make([]any, len(rideIDs))
	for i, id := range rideIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT `+bookingColumns+` FROM bookings WHERE ride_id IN (%s) ORDER BY created_at DESC, id DESC`,
		strings.Join(placeholders, ","))
	return s.query(ctx, query, args...)
}

func (s *PostgresBookingStore) ListByRide(ctx context.Context, rideID uuid.UUID) ([]domain.Booking, error) {
	return s.query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE ride_id = $1 ORDER BY created_at DESC, id DESC`, rideID)
}

func (s *PostgresBookingStore) query(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	var bookings []domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var booking domain.Booking
	err := row.Scan(&booking.ID, &booking.RideID, &booking.SeekerID, &booking.Status, &booking.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("scan booking: %w", err)
	}
	return booking, nil
}
