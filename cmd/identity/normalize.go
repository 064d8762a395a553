package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeNationalID trims surrounding whitespace only. National identifiers
// are opaque strings here; no checksum or format validation is applied.
func NormalizeNationalID(s string) string {
	return strings.TrimSpace(s)
}
