// Package normalize canonicalizes free-text identity fields into the
// matching-ready form shared by ingestion and screening. Both sides must use
// the same canonicalization or scores drift between list versions.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text canonicalizes a name or address fragment: decompose, strip combining
// marks (diacritics), uppercase, drop punctuation, collapse whitespace.
// Empty or whitespace-only input yields "".
func Text(s string) string {
	if s == "" {
		return ""
	}

	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from NFD decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
			lastSpace = false
		default:
			// punctuation and whitespace both act as token separators
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Tokens splits a canonicalized string into its word tokens.
func Tokens(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
