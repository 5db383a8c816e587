package validators

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Length caps for free text accepted over HTTP.
const (
	MaxNotesLen  = 1000
	MaxSearchLen = 100
)

// SanitizeString trims surrounding whitespace and caps the result at maxLen
// bytes without splitting a UTF-8 sequence.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return strings.TrimSpace(trimmed[:cut])
}

// SanitizeOptional applies SanitizeString to an optional field. Blank input
// becomes nil.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	out := SanitizeString(*input, maxLen)
	if out == "" {
		return nil
	}
	return &out
}

// SearchQuery reads the free-text search parameter.
func SearchQuery(values url.Values) string {
	return SanitizeString(values.Get("search"), MaxSearchLen)
}
