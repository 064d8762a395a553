package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the verified identity extracted from a valid token.
type Principal struct {
	Subject   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// Manager issues and verifies stateless session tokens.
type Manager interface {
	Issue(subject int64, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Principal, error)
}

type hs256Manager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	secret    []byte
}

// NewHS256Manager builds a Manager signing HS256 JWTs with cfg.Secret.
//
// It enforces issuer and expiration rules; clock skew is applied as leeway
// during verification to tolerate minor clock differences.
func NewHS256Manager(cfg Config) (Manager, error) {
	if cfg.Secret == "" {
		return nil, ErrConfig
	}
	if cfg.TTL <= 0 || cfg.ClockSkew < 0 {
		return nil, ErrConfig
	}

	return &hs256Manager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    []byte(cfg.Secret),
	}, nil
}

func (m *hs256Manager) Issue(subject int64, now time.Time) (string, time.Time, error) {
	if subject <= 0 {
		return "", time.Time{}, ErrConfig
	}

	exp := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   strconv.FormatInt(subject, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hs256Manager) Verify(tokenStr string, now time.Time) (Principal, error) {
	var claims jwt.RegisteredClaims

	// Build a fresh parser per call; parsers are cheap and this keeps the
	// validation time pinned to the caller-supplied clock.
	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		// Expiry is reported even when other checks also failed, so callers
		// can tell "re-authenticate" apart from "reject".
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrTokenMalformed
	}

	subject, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || subject <= 0 {
		return Principal{}, ErrTokenMalformed
	}

	out := Principal{
		Subject: subject,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
