// Package mock provides test doubles for the calendar interfaces.
//
// Each mock records its calls for assertion and exposes exported fields that
// control what it returns. Safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxcal/pkg/calendar"
)

// CreateCall records one CreateEvent invocation.
type CreateCall struct {
	CalendarID string
	Event      calendar.Event
}

// Writer is a configurable test double for [calendar.Writer].
type Writer struct {
	mu    sync.Mutex
	calls []CreateCall

	// CreateResult is returned by CreateEvent on success. When zero, a
	// plausible default with ID "evt-1" is returned.
	CreateResult calendar.Created

	// CreateErr is returned by CreateEvent when non-nil.
	CreateErr error
}

var _ calendar.Writer = (*Writer)(nil)

// CreateEvent records the call and returns the configured result.
func (w *Writer) CreateEvent(_ context.Context, calendarID string, ev calendar.Event) (calendar.Created, error) {
	w.mu.Lock()
	w.calls = append(w.calls, CreateCall{CalendarID: calendarID, Event: ev})
	w.mu.Unlock()

	if w.CreateErr != nil {
		return calendar.Created{}, w.CreateErr
	}
	if w.CreateResult == (calendar.Created{}) {
		return calendar.Created{ID: "evt-1", Start: ev.Start.Format("2006-01-02T15:04:05Z07:00")}, nil
	}
	return w.CreateResult, nil
}

// Calls returns a copy of all recorded CreateEvent invocations.
func (w *Writer) Calls() []CreateCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]CreateCall, len(w.calls))
	copy(out, w.calls)
	return out
}

// Credentials is a configurable test double for [calendar.CredentialSource].
type Credentials struct {
	mu     sync.Mutex
	checks int

	// CheckErr is returned by Check when non-nil.
	CheckErr error
}

var _ calendar.CredentialSource = (*Credentials)(nil)

// Check records the call and returns the configured error.
func (c *Credentials) Check() error {
	c.mu.Lock()
	c.checks++
	c.mu.Unlock()
	return c.CheckErr
}

// CheckCount returns how many times Check was invoked.
func (c *Credentials) CheckCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks
}
