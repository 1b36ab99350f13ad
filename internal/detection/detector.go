// Package detection screens login fields for SQL injection payloads.
package detection

import (
	"regexp"
	"strings"
)

var safeInput = regexp.MustCompile(`^[a-z0-9_]+$`)

// IsSuspicious reports whether raw matches any injection signature after
// normalization. It is pure and safe for concurrent use.
func IsSuspicious(raw string) bool {
	_, hit := Match(raw)
	return hit
}

// Match is IsSuspicious that also returns the source of the first matching
// signature, for server-side logging.
func Match(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	normalized, compressed := Normalize(raw)
	if normalized == "" || safeInput.MatchString(normalized) {
		return "", false
	}

	for _, sig := range Signatures {
		if sig.MatchString(normalized) || sig.MatchString(compressed) {
			return sig.String(), true
		}
	}
	return "", false
}

// Normalize percent-decodes raw, turns '+' into a space, collapses whitespace
// runs, trims and lower-cases. The second result has all whitespace removed.
func Normalize(raw string) (string, string) {
	s := unquote(raw)
	s = strings.ReplaceAll(s, "+", " ")
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return s, strings.ReplaceAll(s, " ", "")
}

// unquote decodes %XX escapes and leaves malformed escapes as they are.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
