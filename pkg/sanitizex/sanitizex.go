package sanitizex

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanSingleLine normalizes to NFC, turns control characters into spaces,
// trims the ends and collapses internal whitespace runs to one ASCII space.
func CleanSingleLine(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\u007f' || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return b.String()
}

// CleanEmail returns the canonical form of an email address: trimmed and lowercased.
func CleanEmail(s string) string {
	return strings.ToLower(CleanToken(s))
}

// CleanToken normalizes to NFC and trims whitespace and control runes from the
// ends. Interior runes are kept so validation sees them. Usernames, one-time
// codes and other single-token inputs go through it.
func CleanToken(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimFunc(norm.NFC.String(s), func(r rune) bool {
		return r == '\u007f' || unicode.IsControl(r) || unicode.IsSpace(r)
	})
}
