package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters other than newlines
// and tabs, and caps the result at maxRunes runes. maxRunes <= 0 means no cap.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	cleaned = strings.TrimSpace(cleaned)

	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return cleaned
}

// SanitizeOptional applies SanitizeString and maps blank results to nil.
func SanitizeOptional(input *string, maxRunes int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxRunes)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
