package chat

import (
	"regexp"
	"strings"
	"time"
)

var ordinalPattern = regexp.MustCompile(`\b(\d+)(st|nd|rd|th)\b`)

var dateLayouts = []string{
	"2006-01-02",
	"2 Jan 2006",
	"Jan 2 2006",
	"2 January 2006",
	"January 2 2006",
	"2/1/2006",
	"02/01/2006",
	"2006/01/02",
}

// extractDate pulls a calendar date out of free text. Ordinal suffixes are
// stripped first ("15th Jan" reads as "15 Jan"), then every run of up to
// three tokens is tried against the supported layouts.
func extractDate(message string) (time.Time, bool) {
	cleaned := ordinalPattern.ReplaceAllString(strings.ToLower(message), "$1")
	tokens := strings.FieldsFunc(cleaned, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '?', '!', '.', '"':
			return true
		}
		return false
	})
	for i := range tokens {
		tokens[i] = titleCase(tokens[i])
	}

	for width := 3; width >= 1; width-- {
		for start := 0; start+width <= len(tokens); start++ {
			candidate := strings.Join(tokens[start:start+width], " ")
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, candidate); err == nil {
					return parsed, true
				}
			}
		}
	}
	return time.Time{}, false
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
