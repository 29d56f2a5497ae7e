// Package mock provides an in-memory test double for [ledger.Recorder].
//
// The mock records every booking passed to Record for assertion in tests and
// exposes exported fields that control what the mock returns. It is safe for
// concurrent use via an internal [sync.Mutex].
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxcal/pkg/ledger"
)

// Recorder is a configurable test double for [ledger.Recorder].
type Recorder struct {
	mu sync.Mutex

	// records holds every booking passed to Record, in order.
	records []ledger.Booking

	// RecordErr is returned by [Recorder.Record] when non-nil. The booking
	// is still captured so tests can assert on best-effort callers.
	RecordErr error

	// RecentResult is returned by [Recorder.Recent].
	// When nil, Recent returns an empty non-nil slice.
	RecentResult []ledger.Booking

	// RecentErr is returned by [Recorder.Recent] when non-nil.
	RecentErr error

	closed bool
}

var _ ledger.Recorder = (*Recorder)(nil)

// Record implements [ledger.Recorder].
func (m *Recorder) Record(_ context.Context, b ledger.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, b)
	return m.RecordErr
}

// Recent implements [ledger.Recorder].
func (m *Recorder) Recent(_ context.Context, _ int) ([]ledger.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecentResult == nil {
		return []ledger.Booking{}, m.RecentErr
	}
	out := make([]ledger.Booking, len(m.RecentResult))
	copy(out, m.RecentResult)
	return out, m.RecentErr
}

// Close implements [ledger.Recorder].
func (m *Recorder) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Records returns a copy of every booking passed to Record.
func (m *Recorder) Records() []ledger.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Booking, len(m.records))
	copy(out, m.records)
	return out
}

// RecordCount returns how many bookings were recorded.
func (m *Recorder) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Closed reports whether Close was called.
func (m *Recorder) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
