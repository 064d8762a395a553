package token

import "errors"

var (
	// ErrTokenMalformed is returned for tokens with a bad shape, signature, or
	// issuer. The cause is deliberately not distinguished further.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	// Callers must re-authenticate.
	ErrTokenExpired = errors.New("token expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
