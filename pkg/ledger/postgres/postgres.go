// Package postgres provides the PostgreSQL-backed booking ledger.
//
// A single [pgxpool.Pool] backs all operations. [Migrate] is idempotent and
// runs automatically on [New], so the ledger is usable against an empty
// database.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Record(ctx, booking)
//	recent, _ := store.Recent(ctx, 20)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxcal/pkg/ledger"
)

var _ ledger.Recorder = (*Store)(nil)

const ddlBookings = `
CREATE TABLE IF NOT EXISTS bookings (
    id               BIGSERIAL    PRIMARY KEY,
    session_id       TEXT         NOT NULL DEFAULT '',
    summary          TEXT         NOT NULL,
    starts_at        TIMESTAMPTZ,
    ends_at          TIMESTAMPTZ,
    duration_minutes INT          NOT NULL DEFAULT 0,
    event_id         TEXT         NOT NULL DEFAULT '',
    link             TEXT         NOT NULL DEFAULT '',
    status           TEXT         NOT NULL,
    detail           TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bookings_session_id
    ON bookings (session_id);

CREATE INDEX IF NOT EXISTS idx_bookings_starts_at
    ON bookings (starts_at);

CREATE INDEX IF NOT EXISTS idx_bookings_created_at
    ON bookings (created_at);
`

// Store is the PostgreSQL-backed [ledger.Recorder].
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the PostgreSQL database at dsn, verifies the connection,
// and runs [Migrate] so the bookings table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("booking ledger: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("booking ledger: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("booking ledger: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("booking ledger: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the bookings table and its indexes. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlBookings); err != nil {
		return fmt.Errorf("ledger migrate: %w", err)
	}
	return nil
}

// Record implements [ledger.Recorder]. Failed attempts may carry zero start
// and end instants; those are stored as NULL.
func (s *Store) Record(ctx context.Context, b ledger.Booking) error {
	const q = `
		INSERT INTO bookings
		    (session_id, summary, starts_at, ends_at, duration_minutes, event_id, link, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	var startsAt, endsAt any
	if !b.StartsAt.IsZero() {
		startsAt = b.StartsAt
	}
	if !b.EndsAt.IsZero() {
		endsAt = b.EndsAt
	}

	_, err := s.pool.Exec(ctx, q,
		b.SessionID,
		b.Summary,
		startsAt,
		endsAt,
		b.DurationMinutes,
		b.EventID,
		b.Link,
		b.Status,
		b.Detail,
		b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("booking ledger: record: %w", err)
	}
	return nil
}

// Recent implements [ledger.Recorder]. It returns up to limit bookings ordered
// newest first; a limit of 0 defaults to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]ledger.Booking, error) {
	const q = `
		SELECT session_id, summary, starts_at, ends_at, duration_minutes, event_id, link, status, detail, created_at
		FROM   bookings
		ORDER  BY created_at DESC
		LIMIT  $1`

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("booking ledger: recent: %w", err)
	}

	bookings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Booking, error) {
		var (
			b        ledger.Booking
			startsAt *time.Time
			endsAt   *time.Time
		)
		if err := row.Scan(
			&b.SessionID,
			&b.Summary,
			&startsAt,
			&endsAt,
			&b.DurationMinutes,
			&b.EventID,
			&b.Link,
			&b.Status,
			&b.Detail,
			&b.CreatedAt,
		); err != nil {
			return ledger.Booking{}, err
		}
		if startsAt != nil {
			b.StartsAt = *startsAt
		}
		if endsAt != nil {
			b.EndsAt = *endsAt
		}
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("booking ledger: scan rows: %w", err)
	}
	if bookings == nil {
		bookings = []ledger.Booking{}
	}
	return bookings, nil
}

// Ping verifies the database connection. Exposed for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("booking ledger: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
