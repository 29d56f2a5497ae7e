// Package calendar defines the types and collaborator interfaces for
// calendar backends that the booking layer writes events to.
//
// The two abstractions are:
//
//   - [Writer]: inserts an event into a named calendar and reports the
//     backend's reference data.
//   - [CredentialSource]: answers "can this backend be used right now"
//     before any booking work starts, so a missing local credential fails
//     fast instead of surfacing mid-booking.
//
// Implementations live in vendor subpackages (calendar/google) with a mock
// in calendar/mock. This package lives under pkg/ because alternative
// backends are expected to implement these interfaces.
package calendar

import (
	"context"
	"time"
)

// Event is a request to create a calendar event.
type Event struct {
	// Summary is the event title.
	Summary string

	// Description is the optional free-text body.
	Description string

	// Start and End bound the event.
	Start time.Time
	End   time.Time

	// TimeZone is the IANA zone label attached to both instants on the
	// backend, e.g. "Asia/Kolkata". The instants themselves already carry
	// their offset; the label controls how the backend displays them.
	TimeZone string
}

// Created describes an event a backend accepted.
type Created struct {
	// ID is the backend's opaque reference for the event. Never empty;
	// backends that omit an identifier report "unknown".
	ID string

	// Link is a browser URL for the event. May be empty.
	Link string

	// Start is the backend's echo of the start instant, RFC 3339. Falls back
	// to the requested instant when the backend does not echo one.
	Start string
}

// Writer creates events on a calendar backend.
//
// Implementations must be safe for concurrent use.
type Writer interface {
	// CreateEvent inserts ev into the calendar identified by calendarID
	// ("primary" for the account's default calendar).
	CreateEvent(ctx context.Context, calendarID string, ev Event) (Created, error)
}

// CredentialSource reports whether usable backend credentials are present.
type CredentialSource interface {
	// Check returns nil when credentials exist and load correctly. The error
	// text is written for the end user: the dialogue layer relays it
	// verbatim when a booking is refused.
	Check() error
}
