package utils

import (
	"strings"
	"unicode"
)

// SanitizeString removes control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizeFilename keeps letters, digits, '-', '_' and '.'; anything else
// becomes '_'. An empty result is replaced by "room".
func SanitizeFilename(s string) string {
	s = SanitizeString(s)
	out := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	out = strings.Trim(out, ".")
	if out == "" {
		return "room"
	}
	return out
}

// ContainsFold reports whether sub is within s, ignoring case. An empty
// sub always matches.
func ContainsFold(s, sub string) bool {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
