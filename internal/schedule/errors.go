package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Resolution failures are values whose Error text is written for the end
// user: the dialogue layer relays it verbatim, so the messages are full
// sentences rather than conventional lower-case error strings.

// instantLayout is how instants are rendered inside user-facing messages.
const instantLayout = "2006-01-02 15:04"

// ErrNoStart reports an empty start-time input.
var ErrNoStart = errors.New("No start time provided.")

// ParseError reports input that matched none of the resolution branches.
type ParseError struct {
	// Input is the original start text as the caller supplied it.
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Could not understand start time: '%s'. Try 'today at 6 PM' or '2025-12-05T18:00:00+05:30'.", e.Input)
}

// NoTimeError reports input that named a day (or nothing at all) but no
// recognizable time of day, such as a bare "tomorrow".
type NoTimeError struct {
	Input string
}

func (e *NoTimeError) Error() string {
	return fmt.Sprintf("Could not determine a time from '%s'.", e.Input)
}

// PastDateError reports an explicitly dated input that lies in the past
// beyond the grace window. It names both instants so the user can see what
// was understood and when "now" was.
type PastDateError struct {
	Parsed time.Time
	Now    time.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("The date '%s' is in the past. Current time is '%s'. Please provide today's date or a future date.",
		e.Parsed.Format(instantLayout), e.Now.Format(instantLayout))
}

// ErrorKind classifies a resolution error for metrics labels and logs:
// "empty", "parse", "no_time", "past_date", or "" for nil and foreign errors.
func ErrorKind(err error) string {
	var (
		parseErr *ParseError
		timeErr  *NoTimeError
		pastErr  *PastDateError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoStart):
		return "empty"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &timeErr):
		return "no_time"
	case errors.As(err, &pastErr):
		return "past_date"
	default:
		return ""
	}
}
