// Package sanitize cleans generated caller text before it is spoken.
//
// Clean removes stage directions such as "(coughing)", "[gasps]" or
// "*sobs*", and collapses a reply that the generator accidentally
// emitted twice in a row. The duplication check is exact-match only.
package sanitize

import (
	"regexp"
	"strings"
)

// MinDuplicateLen is the length a reply must exceed before the
// duplication guard is applied.
const MinDuplicateLen = 20

// Fallback lines spoken when the generator returns nothing.
const (
	FallbackLine        = "I... I can't hear you! The fire is loud! Help!"
	InitialFallbackLine = "Hello?... Hello? Is anyone there? Please help!"
)

var stageDirection = regexp.MustCompile(`[\(\[\*].*?[\)\]\*]`)

// Result is the cleaned text and what was done to it.
type Result struct {
	// Text is spoken and stored in the message log.
	Text string

	// Deduplicated is set when the second half of the reply repeated the first.
	Deduplicated bool

	// Fallback is set when the generator returned blank text.
	Fallback bool
}

// Clean sanitizes raw generated text. initial marks the system-triggered
// opening turn, which has its own fallback line.
func Clean(raw string, initial bool) Result {
	var res Result

	if strings.TrimSpace(raw) == "" {
		raw = FallbackLine
		if initial {
			raw = InitialFallbackLine
		}
		res.Fallback = true
	}

	text := StripStageDirections(raw)
	if half, ok := duplicatedHalf(text); ok {
		text = half
		res.Deduplicated = true
	}

	res.Text = text
	return res
}

// StripStageDirections removes non-speakable spans and trims the result.
func StripStageDirections(s string) string {
	return strings.TrimSpace(stageDirection.ReplaceAllString(s, ""))
}

// duplicatedHalf reports whether s is the same text twice. Splitting is
// done on runes so multi-byte characters are never cut.
func duplicatedHalf(s string) (string, bool) {
	r := []rune(s)
	if len(r) <= MinDuplicateLen {
		return "", false
	}
	mid := len(r) / 2
	first := strings.TrimSpace(string(r[:mid]))
	second := strings.TrimSpace(string(r[mid:]))
	if first == "" || first != second {
		return "", false
	}
	return first, true
}
