package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrConflict     = errors.New("conflict")

	// ErrInvalidCredentials covers both unknown national id and wrong password.
	// The two cases must stay indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrUnavailable is the service-boundary translation of any store fault.
	// Raw storage errors never cross this boundary.
	ErrUnavailable = errors.New("store_unavailable")
)
