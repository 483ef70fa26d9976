package stream

import (
	"strings"
)

// Sanitize maps s onto a destination identifier: every character outside
// [A-Za-z0-9_] becomes '_', the result is lower-cased, and a leading digit
// is prefixed with '_'.
func Sanitize(s string) string {
	if s == "" {
		return "_"
	}
	var sb strings.Builder
	sb.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && r >= '0' && r <= '9' {
			sb.WriteByte('_')
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(r + ('a' - 'A'))
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
