// Package filename sanitizes attachment filenames for storage and display.
package filename

import (
	"strings"
	"unicode"
)

const unsafeChars = `\/:*?"<>|`

// Normalize replaces control characters and the characters \ / : * ? " < > |
// with a space and trims surrounding whitespace.
func Normalize(name string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cc, r) || strings.ContainsRune(unsafeChars, r) {
			return ' '
		}
		return r
	}, name)
	return strings.TrimSpace(mapped)
}

// IsNormalized reports whether name is already in normalized form.
func IsNormalized(name string) bool {
	return Normalize(name) == name
}
