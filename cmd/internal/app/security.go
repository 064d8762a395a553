package app

import (
	"errors"

	"seva/cmd/internal/auth/token"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail-fast is intentional: silently signing tokens with a weak secret
// in production is unacceptable.
func ValidateSecurityConfig(cfg Config, tokCfg token.Config) error {
	if !cfg.RequireStrongSecret {
		return nil
	}

	// Minimum 32 bytes for an HS256 signing secret. Bytes, not runes:
	// the key is used as raw key material.
	if len(tokCfg.Secret) < 32 {
		return errors.New("security policy: SEVA_REQUIRE_STRONG_SECRET=true but SEVA_TOKEN_SECRET is shorter than 32 bytes")
	}
	return nil
}
