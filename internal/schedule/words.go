package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// wordNumbers maps spoken cardinals to their values. Compound tens are stored
// joined ("twentyone"); WordNumber normalizes spaced variants before lookup.
var wordNumbers = map[string]int{
	"zero":        0,
	"one":         1,
	"two":         2,
	"three":       3,
	"four":        4,
	"five":        5,
	"six":         6,
	"seven":       7,
	"eight":       8,
	"nine":        9,
	"ten":         10,
	"eleven":      11,
	"twelve":      12,
	"thirteen":    13,
	"fourteen":    14,
	"fifteen":     15,
	"sixteen":     16,
	"seventeen":   17,
	"eighteen":    18,
	"nineteen":    19,
	"twenty":      20,
	"twentyone":   21,
	"twentytwo":   22,
	"twentythree": 23,
	"twentyfour":  24,
}

// tokenPattern splits text into alphabetic runs and digit runs, discarding
// everything else (hyphens, punctuation, stray symbols).
var tokenPattern = regexp.MustCompile(`[a-z]+|[0-9]+`)

// WordNumber resolves text denoting a small cardinal (roughly 0 through 24,
// the range a spoken hour can take) to its integer value.
//
// The cascade, first hit wins:
//
//  1. When every token is alphabetic: look up all tokens joined into one key
//     ("twenty four" -> "twentyfour"), then the concatenation of the last two
//     tokens (handles a compound read as separate words after a filler,
//     "at twenty two").
//  2. Concatenate every digit character found anywhere in the text and parse
//     the result ("1 2" spoken as digits means 12).
//  3. Scan tokens left to right and return the first one present in the word
//     table ("six thirty" resolves to 6; the caller handles minutes).
//
// Pure and case-insensitive. The second return is false when no strategy
// produced a value.
func WordNumber(text string) (int, bool) {
	parts := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(parts) == 0 {
		return 0, false
	}

	allAlpha := true
	for _, p := range parts {
		if p[0] >= '0' && p[0] <= '9' {
			allAlpha = false
			break
		}
	}

	if allAlpha {
		if v, ok := wordNumbers[strings.Join(parts, "")]; ok {
			return v, true
		}
		if len(parts) >= 2 {
			if v, ok := wordNumbers[parts[len(parts)-2]+parts[len(parts)-1]]; ok {
				return v, true
			}
		}
	}

	var digits strings.Builder
	for _, p := range parts {
		if p[0] >= '0' && p[0] <= '9' {
			digits.WriteString(p)
		}
	}
	if digits.Len() > 0 {
		if v, err := strconv.Atoi(digits.String()); err == nil {
			return v, true
		}
	}

	for _, p := range parts {
		if v, ok := wordNumbers[p]; ok {
			return v, true
		}
	}

	return 0, false
}
