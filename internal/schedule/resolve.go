// Package schedule resolves natural-language start times into concrete
// instants in the assistant's operating timezone.
//
// Input arrives from a remote voice agent's transcription, so it ranges from
// full ISO-8601 strings down to fragments like "six thirty pm" or a bare
// "tomorrow". Resolution runs a fixed cascade of branches, each stricter
// about what it accepts than the next:
//
//  1. Strict ISO-8601 with a 'T' separator. An explicit full date is taken
//     at its word: an instant more than one hour in the past is rejected
//     outright rather than shifted, because silently moving a stated day
//     would change what the caller asked for.
//  2. Relative day phrases and spoken times ("today at 6 PM", "6 PM").
//     These carry no explicit date precision, so an instant at or before
//     now rolls forward exactly one day: "6pm" spoken at 6:05pm means
//     tomorrow evening, not an error.
//  3. Loose ISO-8601 without the 'T' anchor ("2025-12-05 18:30",
//     "2025-12-05"), rejected when past like branch 1.
//  4. A date-plus-clock regex for shapes the layout parsers miss
//     ("2025-12-05 18"), rejected when past like branch 1.
//  5. A generic parse failure quoting the input and two accepted examples.
//
// All computation happens in the fixed operating timezone (UTC+05:30); the
// current instant is always injected by the caller, never read from the
// clock, which keeps every function here deterministic and testable.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kolkata is the fixed operating timezone, UTC+05:30. Offset-less inputs are
// interpreted in this zone and all derived instants carry it.
var Kolkata = time.FixedZone("IST", 5*3600+30*60)

// pastGrace is how far behind now an explicitly dated input may lie before
// it is rejected. Covers clock skew between the agent and this process.
const pastGrace = time.Hour

var (
	strictISOPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)
	explicitDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dateClockPattern    = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[ T](\d{1,2}):?(\d{2})?`)
)

// strictLayouts parse ISO-8601 forms with a 'T' separator; offset and
// seconds are each optional.
var strictLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
}

// looseLayouts parse date-first forms without the 'T' anchor, down to a bare
// date.
var looseLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ResolveStart resolves input to a concrete instant, validated against the
// injected current time. See the package documentation for the branch order.
// Failures are one of the error values in this package; their text is meant
// for the end user.
func ResolveStart(input string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, ErrNoStart
	}

	// Branch 1: strict ISO with a 'T'. A near-miss (matching prefix that no
	// layout parses) falls through the rest of the cascade.
	if strictISOPattern.MatchString(trimmed) {
		if t, ok := parseFirst(strictLayouts, trimmed); ok {
			return checkNotPast(t, now)
		}
	}

	// Branch 2: relative day and/or spoken time. Skipped when the input
	// carries an explicit calendar date, because the roll-forward policy
	// below must never move a date the caller spelled out; such inputs get
	// the hard validation of branches 3 and 4 instead.
	if !explicitDatePattern.MatchString(trimmed) {
		if t, handled, err := resolveSpoken(input, now); handled {
			return t, err
		}
	}

	// Branch 3: loose ISO, date-only included.
	if t, ok := parseFirst(looseLayouts, trimmed); ok {
		return checkNotPast(t, now)
	}

	// Branch 4: date plus clock shapes the layouts miss, like a bare hour
	// with no minutes.
	if m := dateClockPattern.FindStringSubmatch(trimmed); m != nil {
		hour, _ := strconv.Atoi(m[2])
		minute := 0
		if m[3] != "" {
			minute, _ = strconv.Atoi(m[3])
		}
		composed := fmt.Sprintf("%sT%02d:%02d:00", m[1], hour, minute)
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", composed, Kolkata); err == nil {
			return checkNotPast(t, now)
		}
	}

	return time.Time{}, &ParseError{Input: input}
}

// resolveSpoken handles branch 2: a relative day phrase, a time of day, or
// both. handled is false when neither was found and the cascade should
// continue with the later branches.
func resolveSpoken(input string, now time.Time) (t time.Time, handled bool, err error) {
	lowered := strings.ToLower(strings.TrimSpace(input))

	base, remainder, hasDay := RelativeDay(lowered, now)
	timeText := lowered
	if hasDay && remainder != "" {
		timeText = remainder
	}

	tod, hasTime := ExtractTimeOfDay(timeText)
	if !hasDay && !hasTime {
		return time.Time{}, false, nil
	}
	if !hasTime {
		return time.Time{}, true, &NoTimeError{Input: input}
	}
	if !hasDay {
		base = now
	}

	year, month, day := base.In(Kolkata).Date()
	candidate := time.Date(year, month, day, tod.Hour, tod.Minute, 0, 0, Kolkata)

	// No explicit date precision here: an instant at or before now means the
	// next occurrence of that time of day.
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, true, nil
}

// parseFirst tries each layout in order, interpreting offset-less values in
// the operating timezone.
func parseFirst(layouts []string, s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, Kolkata); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// checkNotPast enforces the hard rejection for explicitly dated inputs: the
// instant must not lie more than pastGrace before now.
func checkNotPast(t, now time.Time) (time.Time, error) {
	if t.Before(now.Add(-pastGrace)) {
		return time.Time{}, &PastDateError{Parsed: t, Now: now}
	}
	return t, nil
}
