// Package booking turns agent function arguments into calendar events.
//
// The orchestrator is deliberately sequential: check credentials, resolve the
// start time, coerce the duration, create the event. Every outcome is a plain
// text sentence suitable for speaking back to the user; failures never cross
// the package boundary as Go errors. Attempts are additionally recorded to
// the booking ledger when one is configured.
package booking

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/voxcal/internal/observe"
	"github.com/MrWong99/voxcal/internal/schedule"
	"github.com/MrWong99/voxcal/pkg/calendar"
	"github.com/MrWong99/voxcal/pkg/ledger"
)

// ClosingMessage is spoken when the agent invokes end_session.
const ClosingMessage = "Thank you — your session is now closed. If you need anything else, feel free to ask."

// DefaultDurationMinutes applies when the requested duration is absent or
// cannot be coerced to an integer.
const DefaultDurationMinutes = 30

// Request carries the raw arguments of one booking attempt.
type Request struct {
	// Summary is the event title.
	Summary string

	// StartText is the start time exactly as supplied: an ISO string or
	// spoken text.
	StartText string

	// Duration is the requested length in minutes in whatever JSON shape the
	// agent produced (number, string, or nil).
	Duration any

	// Description is the optional event body.
	Description string
}

// Service books calendar events from loosely specified requests.
type Service struct {
	creds      calendar.CredentialSource
	cal        calendar.Writer
	rec        ledger.Recorder
	metrics    *observe.Metrics
	nowFn      func() time.Time
	calendarID string
	timeZone   string

	mu        sync.Mutex
	sessionID string
}

// Option configures a [Service].
type Option func(*Service)

// WithClock overrides how the service captures "now" for each booking. The
// returned instant should carry the operating timezone.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFn = now }
}

// WithRecorder sets the booking ledger. Defaults to [ledger.Noop].
func WithRecorder(rec ledger.Recorder) Option {
	return func(s *Service) { s.rec = rec }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCalendarID sets the target calendar. Defaults to "primary".
func WithCalendarID(id string) Option {
	return func(s *Service) { s.calendarID = id }
}

// WithTimeZone sets the IANA timezone label attached to created events.
// Defaults to "Asia/Kolkata".
func WithTimeZone(tz string) Option {
	return func(s *Service) { s.timeZone = tz }
}

// New creates a booking service using creds for the fail-fast credential
// check and cal for the create-event call.
func New(creds calendar.CredentialSource, cal calendar.Writer, opts ...Option) *Service {
	s := &Service{
		creds:      creds,
		cal:        cal,
		rec:        ledger.Noop{},
		calendarID: "primary",
		timeZone:   "Asia/Kolkata",
		nowFn: func() time.Time {
			return time.Now().In(schedule.Kolkata)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetSession labels subsequent ledger records with the given session id.
// Safe to call concurrently with Book.
func (s *Service) SetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

func (s *Service) session() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Book processes one booking request and returns the text to speak back to
// the user. It never returns a Go error: every failure is rendered as a
// sentence the agent can relay.
func (s *Service) Book(ctx context.Context, req Request) string {
	ctx, span := observe.StartSpan(ctx, "booking.Book")
	defer span.End()
	log := observe.Logger(ctx)

	if err := s.creds.Check(); err != nil {
		log.Warn("booking rejected, credential check failed", "error", err)
		s.recordFailure(ctx, req, err.Error())
		return fmt.Sprintf("Error: %v", err)
	}

	now := s.nowFn()
	resolveStarted := time.Now()
	start, err := schedule.ResolveStart(req.StartText, now)
	s.metrics.RecordResolve(ctx, time.Since(resolveStarted), schedule.ErrorKind(err))
	if err != nil {
		s.logResolveFailure(ctx, req.StartText, err)
		s.recordFailure(ctx, req, err.Error())
		return fmt.Sprintf("Error: %v", err)
	}

	minutes := coerceDuration(req.Duration)
	end := start.Add(time.Duration(minutes) * time.Minute)

	created, err := s.cal.CreateEvent(ctx, s.calendarID, calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       start,
		End:         end,
		TimeZone:    s.timeZone,
	})
	if err != nil {
		log.Warn("calendar rejected event", "summary", req.Summary, "error", err)
		s.metrics.RecordBooking(ctx, ledger.StatusFailed)
		s.record(ctx, ledger.Booking{
			SessionID:       s.session(),
			Summary:         req.Summary,
			StartsAt:        start,
			EndsAt:          end,
			DurationMinutes: minutes,
			Status:          ledger.StatusFailed,
			Detail:          err.Error(),
		})
		return fmt.Sprintf("Failed to create event: %v", err)
	}

	log.Info("event booked",
		"summary", req.Summary,
		"start", created.Start,
		"duration_minutes", minutes,
		"event_id", created.ID,
	)
	s.metrics.RecordBooking(ctx, ledger.StatusBooked)
	s.record(ctx, ledger.Booking{
		SessionID:       s.session(),
		Summary:         req.Summary,
		StartsAt:        start,
		EndsAt:          end,
		DurationMinutes: minutes,
		EventID:         created.ID,
		Link:            created.Link,
		Status:          ledger.StatusBooked,
	})

	text := fmt.Sprintf("Booked '%s' on %s. I've added it to your calendar. Reference: %s.",
		req.Summary, created.Start, created.ID)
	if created.Link != "" {
		text += fmt.Sprintf(" Link: %s", created.Link)
	}
	return text
}

// EndSession returns the fixed closing message. No side effects.
func (s *Service) EndSession() string {
	return ClosingMessage
}

// logResolveFailure explains a failed resolution in the session log, adding a
// nearest-keyword hint for unparseable inputs so mangled transcriptions
// ("tomorow at six") stay diagnosable.
func (s *Service) logResolveFailure(ctx context.Context, input string, err error) {
	log := observe.Logger(ctx)
	kind := schedule.ErrorKind(err)
	attrs := []any{"input", input, "kind", kind, "error", err}
	if kind == "parse" || kind == "no_time" {
		if keyword, score, ok := schedule.NearestKeyword(input); ok {
			attrs = append(attrs, "nearest_keyword", keyword, "similarity", score)
		}
	}
	log.Warn("start time resolution failed", attrs...)
}

// recordFailure records an attempt that failed before a time window existed.
func (s *Service) recordFailure(ctx context.Context, req Request, detail string) {
	s.metrics.RecordBooking(ctx, ledger.StatusFailed)
	s.record(ctx, ledger.Booking{
		SessionID: s.session(),
		Summary:   req.Summary,
		Status:    ledger.StatusFailed,
		Detail:    detail,
	})
}

// record writes to the ledger best-effort: a ledger failure is logged, never
// surfaced into the booking result.
func (s *Service) record(ctx context.Context, b ledger.Booking) {
	if err := s.rec.Record(ctx, b); err != nil {
		observe.Logger(ctx).Warn("ledger record failed", "summary", b.Summary, "error", err)
	}
}

// coerceDuration converts the agent-supplied duration to whole minutes,
// falling back to [DefaultDurationMinutes] on anything unusable. JSON decoding
// hands numbers over as float64 and some agents quote them as strings; both
// forms are accepted.
func coerceDuration(v any) int {
	switch d := v.(type) {
	case nil:
		return DefaultDurationMinutes
	case int:
		if d > 0 {
			return d
		}
	case int64:
		if d > 0 {
			return int(d)
		}
	case float64:
		if d > 0 {
			return int(d)
		}
	case string:
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			return n
		}
	}
	return DefaultDurationMinutes
}
