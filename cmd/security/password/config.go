package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Policy controls password validation limits.
type Policy struct {
	MinLength int
	MaxLength int
}

// Config is the single configuration surface for this package.
type Config struct {
	// Cost is the bcrypt work factor. 10 gives roughly 100ms per hash on
	// commodity hardware, which is the intended interactive-login budget.
	Cost int

	Policy Policy
}

// DefaultConfig returns the baseline configuration.
// Values can be overridden via env (see FromEnv).
func DefaultConfig() Config {
	return Config{
		Cost: 10,
		Policy: Policy{
			MinLength: 1,
			// bcrypt ignores input past 72 bytes; refusing longer passwords is
			// safer than silently truncating them.
			MaxLength: 72,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - SEVA_BCRYPT_COST
// - SEVA_PASSWORD_MIN_LEN
// - SEVA_PASSWORD_MAX_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("SEVA_BCRYPT_COST"); ok {
		n, err := atoiInRange(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("SEVA_BCRYPT_COST: %w", err)
		}
		cfg.Cost = n
	}

	if v, ok := os.LookupEnv("SEVA_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 72)
		if err != nil {
			return Config{}, fmt.Errorf("SEVA_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("SEVA_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 72)
		if err != nil {
			return Config{}, fmt.Errorf("SEVA_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}
