package schedule

import (
	"strings"
	"time"
)

// relativeDays lists the recognized day phrases with their offsets from now.
// Longest phrase first, so "tomorrow" never matches inside "day after
// tomorrow".
var relativeDays = []struct {
	phrase string
	offset int
}{
	{phrase: "day after tomorrow", offset: 2},
	{phrase: "tomorrow", offset: 1},
	{phrase: "today", offset: 0},
}

// RelativeDay detects a relative day phrase anywhere in text and resolves it
// against now. It returns the resolved day, the input with the phrase
// stripped (for further time-of-day extraction), and whether a phrase
// matched. Matching is case-insensitive; on a match the remainder is the
// lower-cased input minus the phrase, trimmed. Without a match the input is
// returned unchanged.
func RelativeDay(text string, now time.Time) (time.Time, string, bool) {
	lowered := strings.ToLower(text)
	for _, rd := range relativeDays {
		if !strings.Contains(lowered, rd.phrase) {
			continue
		}
		remainder := strings.TrimSpace(strings.Replace(lowered, rd.phrase, "", 1))
		return now.AddDate(0, 0, rd.offset), remainder, true
	}
	return time.Time{}, text, false
}
