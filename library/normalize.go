package library

import (
	"strings"
	"unicode"
)

// NormalizeISBN strips hyphens and whitespace and upper-cases the result, so
// "978-0-45-152493-5" and "9780451524935" compare equal.
func NormalizeISBN(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// NormalizeUsername trims surrounding whitespace. Case is preserved.
func NormalizeUsername(raw string) string {
	return strings.TrimSpace(raw)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
