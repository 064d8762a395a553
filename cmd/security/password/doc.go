// Package password provides credential hashing and verification for Seva.
//
// It wraps bcrypt with:
// - a configurable cost factor (via environment variables)
// - password policy validation
// - strict handling of malformed stored hashes
//
// Security notes:
// - Stored hashes are treated as untrusted input during Verify.
// - Comparison is constant-time (bcrypt.CompareHashAndPassword).
package password
