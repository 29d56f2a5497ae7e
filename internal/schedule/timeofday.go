package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time on a 24-hour clock, independent of any date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// minuteWords is the fixed set of minute phrases understood after a spoken
// hour ("six thirty"). Keys are space-normalized.
var minuteWords = map[string]int{
	"ten":         10,
	"fifteen":     15,
	"twenty":      20,
	"twenty five": 25,
	"twentyfive":  25,
	"thirty":      30,
	"forty five":  45,
	"fortyfive":   45,
}

var (
	clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(am|pm)?`)

	// Compound minute words come first in the alternation so "twenty five"
	// is never truncated to "twenty".
	minuteWordPattern = regexp.MustCompile(`([a-z][a-z\s]*?)\s+(forty\s?five|twenty\s?five|thirty|fifteen|twenty|ten)(?:\s*(am|pm)\b)?`)

	meridiemPattern = regexp.MustCompile(`([a-z0-9][a-z0-9\s-]*?)\s*(am|pm)\b`)

	bareHourPattern = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// strategy is one named step of the extraction cascade.
type strategy struct {
	name    string
	extract func(string) (TimeOfDay, bool)
}

// strategies is the ordered extraction cascade; the first hit wins. The
// minute-word strategy runs before the meridiem-hour strategy so "six thirty
// pm" yields 18:30 instead of treating "six thirty" as a bare hour phrase.
var strategies = []strategy{
	{name: "explicit-clock", extract: explicitClock},
	{name: "minute-word", extract: minuteWord},
	{name: "meridiem-hour", extract: meridiemHour},
	{name: "bare-digits", extract: bareDigits},
	{name: "bare-word", extract: bareWord},
}

// ExtractTimeOfDay scans free-form text for a time of day.
//
// Transcribed speech arrives in wildly varying shapes ("18:00", "6.30 pm",
// "six thirty", "at six"), so extraction runs an ordered cascade of
// increasingly loose strategies rather than a single grammar, accepting the
// risk of a wrong-but-plausible match over no match at all. Returns false
// when no strategy matched.
//
// Pure function; calling it twice on the same text yields the same result.
func ExtractTimeOfDay(text string) (TimeOfDay, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return TimeOfDay{}, false
	}
	// Spoken clock times are often transcribed with a dot ("6.30"), and some
	// transcribers emit U+2212 for a minus sign.
	s = strings.ReplaceAll(s, ".", ":")
	s = strings.ReplaceAll(s, "−", "-")

	for _, st := range strategies {
		if tod, ok := st.extract(s); ok {
			return tod, true
		}
	}
	return TimeOfDay{}, false
}

// applyMeridiem adjusts an hour for an am/pm suffix: pm adds 12 unless the
// hour is already 12, am maps 12 to 0. An empty meridiem leaves hour as is.
func applyMeridiem(hour int, meridiem string) int {
	switch meridiem {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}

// explicitClock matches a literal H[H]:MM with optional am/pm ("18:00",
// "6:30 pm"). Hour and minute are taken as written.
func explicitClock(s string) (TimeOfDay, bool) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return TimeOfDay{Hour: applyMeridiem(hour, m[3]), Minute: minute}, true
}

// minuteWord matches a spoken hour followed by one of the known minute
// phrases ("six thirty", "six twenty five pm"). The am/pm suffix is optional.
func minuteWord(s string) (TimeOfDay, bool) {
	m := minuteWordPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, false
	}
	hour, ok := WordNumber(strings.TrimSpace(m[1]))
	if !ok {
		return TimeOfDay{}, false
	}
	minute := minuteWords[strings.Join(strings.Fields(m[2]), " ")]
	return TimeOfDay{Hour: applyMeridiem(hour, m[3]), Minute: minute}, true
}

// meridiemHour matches a bare hour with a mandatory am/pm suffix ("6 pm",
// "six pm", "at 6 pm"). The hour phrase is resolved through WordNumber and
// reduced modulo 24 before the meridiem adjustment; minute defaults to 0.
func meridiemHour(s string) (TimeOfDay, bool) {
	m := meridiemPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, false
	}
	hour, ok := WordNumber(strings.TrimSpace(m[1]))
	if !ok {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: applyMeridiem(hour%24, m[2])}, true
}

// bareDigits matches a standalone one- or two-digit number read as a 24-hour
// clock value. 24 normalizes to 0; anything above 24 is rejected.
func bareDigits(s string) (TimeOfDay, bool) {
	m := bareHourPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, false
	}
	v, _ := strconv.Atoi(m[1])
	if v < 0 || v > 24 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: v % 24}, true
}

// bareWord resolves the whole text as a spoken 24-hour clock value
// ("eighteen"). Same range rules as bareDigits.
func bareWord(s string) (TimeOfDay, bool) {
	v, ok := WordNumber(s)
	if !ok || v < 0 || v > 24 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: v % 24}, true
}
