package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims whitespace, strips control characters, and caps the
// result at maxLen bytes. Newlines survive so multi-line notes stay readable.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	trimmed := strings.TrimSpace(cleaned)
	if maxLen > 0 && len(trimmed) > maxLen {
		trimmed = strings.TrimSpace(trimmed[:maxLen])
	}
	return trimmed
}
