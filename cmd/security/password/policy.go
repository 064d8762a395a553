package password

import "unicode/utf8"

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}

	// Characters (runes) for the minimum, bytes for the maximum: bcrypt's
	// 72-byte limit is a byte limit, not a character limit.
	if utf8.RuneCountInString(password) < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if len(password) > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	return nil
}
