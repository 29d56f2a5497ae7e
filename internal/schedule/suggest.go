package schedule

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Thresholds for accepting a vocabulary suggestion. A phonetic overlap may
// accept a looser string similarity than a pure-spelling match.
const (
	suggestPhoneticThreshold = 0.70
	suggestFuzzyThreshold    = 0.85
)

// vocabulary is every word the resolution cascade can react to: relative day
// phrases, hour words, minute phrases and the meridiem markers. Built once.
var vocabulary = buildVocabulary()

func buildVocabulary() []string {
	seen := make(map[string]struct{})
	var words []string
	add := func(w string) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}

	for _, rd := range relativeDays {
		add(rd.phrase)
	}
	for w := range wordNumbers {
		add(w)
	}
	for w := range minuteWords {
		add(w)
	}
	add("am")
	add("pm")

	sort.Strings(words)
	return words
}

// NearestKeyword suggests the vocabulary word closest to any token of text.
//
// It exists for diagnostics only: when resolution fails, the session log can
// hint at what the transcriber probably mangled ("tomorow" for "tomorrow")
// without ever influencing the resolution result. Candidates are filtered by
// Double Metaphone code overlap and ranked by Jaro-Winkler similarity; a
// candidate with no phonetic overlap needs the higher fuzzy threshold.
// Returns ok=false when nothing clears a threshold.
func NearestKeyword(text string) (keyword string, score float64, ok bool) {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(tokens) == 0 {
		return "", 0, false
	}

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)

	for _, tok := range tokens {
		// Tokens the cascade already understands need no suggestion.
		if _, known := wordNumbers[tok]; known {
			continue
		}
		tokPrimary, tokSecondary := matchr.DoubleMetaphone(tok)

		for _, word := range vocabulary {
			phonetic := false
			for _, part := range strings.Fields(word) {
				p, s := matchr.DoubleMetaphone(part)
				if (tokPrimary != "" && (tokPrimary == p || tokPrimary == s)) ||
					(tokSecondary != "" && (tokSecondary == p || tokSecondary == s)) {
					phonetic = true
					break
				}
			}

			jw := matchr.JaroWinkler(tok, word, false)
			switch {
			case phonetic && jw >= suggestPhoneticThreshold:
				if !bestPhonetic || jw > bestScore {
					best, bestScore, bestPhonetic = word, jw, true
				}
			case !phonetic && !bestPhonetic && jw >= suggestFuzzyThreshold:
				if jw > bestScore {
					best, bestScore = word, jw
				}
			}
		}
	}

	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}
