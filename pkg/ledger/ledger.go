// Package ledger records appointment-booking attempts and their outcomes.
//
// The ledger is an audit trail, not a conversation store: each [Booking] row
// carries the event summary the user asked to book, the resolved time window,
// and the outcome, never transcript content. When no database is configured
// the [Noop] recorder is used and nothing is persisted; the postgres
// sub-package provides the durable implementation.
//
// Every implementation must be safe for concurrent use.
package ledger

import (
	"context"
	"time"
)

// Booking status values.
const (
	StatusBooked = "booked"
	StatusFailed = "failed"
)

// Booking is one recorded booking attempt.
type Booking struct {
	// SessionID identifies the agent session that produced this attempt.
	// Empty when the attempt happened outside a live session.
	SessionID string

	// Summary is the event title the user asked to book.
	Summary string

	// StartsAt and EndsAt bound the requested event window. Both are zero
	// when the attempt failed before a start time was resolved.
	StartsAt time.Time
	EndsAt   time.Time

	// DurationMinutes is the requested event length.
	DurationMinutes int

	// EventID and Link reference the created calendar event. Empty on failure.
	EventID string
	Link    string

	// Status is [StatusBooked] or [StatusFailed].
	Status string

	// Detail holds the failure reason for failed attempts.
	Detail string

	// CreatedAt is when the attempt was recorded.
	CreatedAt time.Time
}

// Recorder persists booking attempts.
type Recorder interface {
	// Record appends one booking attempt to the ledger.
	Record(ctx context.Context, b Booking) error

	// Recent returns up to limit bookings, newest first. A limit of 0 lets
	// the implementation apply its own default.
	// Returns an empty (non-nil) slice when the ledger is empty.
	Recent(ctx context.Context, limit int) ([]Booking, error)

	// Close releases any resources held by the recorder.
	Close()
}

// Noop is a Recorder that discards everything. Used when no ledger database
// is configured.
type Noop struct{}

var _ Recorder = (*Noop)(nil)

// Record implements [Recorder] by discarding the booking.
func (Noop) Record(context.Context, Booking) error { return nil }

// Recent implements [Recorder] by returning an empty slice.
func (Noop) Recent(context.Context, int) ([]Booking, error) { return []Booking{}, nil }

// Close implements [Recorder] as a no-op.
func (Noop) Close() {}
