package token

import (
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for session tokens.
//
// It is environment-driven so deployments can tune issuer, lifetime, and clock
// skew without code changes. The signing secret is read once at startup and
// never mutated afterward; concurrent Issue/Verify calls only ever read it.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// TTL is the lifetime of issued tokens.
	TTL time.Duration

	// ClockSkew is the allowed time skew during verification.
	ClockSkew time.Duration

	// Secret is the process-wide HS256 signing secret.
	Secret string
}

// DefaultConfig returns defaults suitable for development.
// Production deployments must provide SEVA_TOKEN_SECRET.
func DefaultConfig() Config {
	return Config{
		Issuer:    "seva",
		TTL:       1 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - SEVA_TOKEN_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - SEVA_TOKEN_ISSUER
//   - SEVA_TOKEN_TTL
//   - SEVA_TOKEN_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SEVA_TOKEN_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("SEVA_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("SEVA_TOKEN_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.Secret = strings.TrimSpace(os.Getenv("SEVA_TOKEN_SECRET"))
	if cfg.Secret == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
