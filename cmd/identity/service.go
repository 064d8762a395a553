package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seva/cmd/internal/auth/token"
	"seva/cmd/security/password"
)

// RegisterInput describes a registration request.
type RegisterInput struct {
	Name       string
	Email      string
	NationalID string
	Phone      *string
	PhotoRef   *string
	Password   string
}

// Service owns registration, authentication, and token verification.
//
// All dependencies are injected at construction so the service runs against an
// in-memory store and a fixed secret in tests; nothing is reached ambiently.
type Service struct {
	log    *slog.Logger
	store  Store
	pw     password.Config
	tokens token.Manager

	// dummyHash keeps login timing stable when the national id is unknown.
	dummyHash string
}

// NewService constructs a Service.
func NewService(log *slog.Logger, store Store, pw password.Config, tokens token.Manager) (*Service, error) {
	if store == nil || tokens == nil {
		return nil, errors.New("identity: nil store or token manager")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{log: log, store: store, pw: pw, tokens: tokens}

	if hash, err := pw.Hash("dummy-password-for-timing-only"); err == nil {
		s.dummyHash = hash
	}

	return s, nil
}

// Register validates input, rejects duplicates, hashes the password, and
// inserts the new record. The returned summary never carries the hash.
//
// The duplicate pre-check runs before hashing so an obvious duplicate does not
// burn a bcrypt computation. The check and the insert are not atomic; a
// concurrent registration losing the race still surfaces as ErrConflict,
// translated from the storage engine's unique-constraint rejection.
func (s *Service) Register(ctx context.Context, now time.Time, in RegisterInput) (Summary, error) {
	const op = "identity.Register"

	if in.Name == "" || in.Email == "" || in.NationalID == "" || in.Password == "" {
		return Summary{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing required field"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	emailNorm := NormalizeEmail(in.Email)
	nationalID := NormalizeNationalID(in.NationalID)

	_, exists, err := s.store.FindByEmailOrNationalID(ctx, emailNorm, nationalID)
	if err != nil {
		return Summary{}, s.storeFault(op, err)
	}
	if exists {
		return Summary{}, ConflictError{Op: op}
	}

	hash, err := s.pw.Hash(in.Password)
	if err != nil {
		// Policy rejections are caller-correctable; anything else is not.
		switch {
		case errors.Is(err, password.ErrPasswordEmpty),
			errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong):
			return Summary{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
		default:
			s.log.Error("identity.register.hash.fail", "err", err)
			return Summary{}, OpError{Op: op, Kind: ErrUnavailable}
		}
	}

	rec, err := s.store.Insert(ctx, Record{
		Name:           in.Name,
		Email:          in.Email,
		EmailNorm:      emailNorm,
		NationalID:     nationalID,
		Phone:          in.Phone,
		PhotoRef:       in.PhotoRef,
		CredentialHash: hash,
		CreatedAt:      now,
	})
	if err != nil {
		return Summary{}, s.storeFault(op, err)
	}

	return rec.Summary(), nil
}

// Authenticate verifies credentials and mints a session token for the record.
//
// Unknown national id and wrong password both return ErrInvalidCredentials with
// identical shape; a dummy bcrypt verification runs on the unknown-id path so
// response timing does not reveal which case occurred.
func (s *Service) Authenticate(ctx context.Context, now time.Time, nationalID, plaintext string) (string, time.Time, error) {
	const op = "identity.Authenticate"

	if nationalID == "" || plaintext == "" {
		return "", time.Time{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing required field"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, exists, err := s.store.FindByNationalID(ctx, NormalizeNationalID(nationalID))
	if err != nil {
		return "", time.Time{}, s.storeFault(op, err)
	}
	if !exists {
		if s.dummyHash != "" {
			_, _ = s.pw.Verify(s.dummyHash, plaintext)
		}
		return "", time.Time{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	ok, err := s.pw.Verify(rec.CredentialHash, plaintext)
	if err != nil || !ok {
		return "", time.Time{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	tok, exp, err := s.tokens.Issue(rec.ID, now)
	if err != nil {
		s.log.Error("identity.authenticate.issue.fail", "err", err)
		return "", time.Time{}, OpError{Op: op, Kind: ErrUnavailable}
	}
	return tok, exp, nil
}

// Verify checks a bearer token and yields the principal it asserts.
// Pure and stateless: no store access.
func (s *Service) Verify(tokenStr string, now time.Time) (token.Principal, error) {
	return s.tokens.Verify(tokenStr, now)
}

// List returns all registered identities, hashes stripped.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	const op = "identity.List"

	out, err := s.store.List(ctx)
	if err != nil {
		return nil, s.storeFault(op, err)
	}
	return out, nil
}

// storeFault translates store errors at the service boundary. Typed identity
// errors pass through; everything else is logged in full and mapped to
// ErrUnavailable so raw storage errors never reach callers.
func (s *Service) storeFault(op string, err error) error {
	var oe OpError
	var ce ConflictError
	if errors.As(err, &oe) || errors.As(err, &ce) {
		return err
	}

	s.log.Error(op+".store.fail", "err", err)
	return OpError{Op: op, Kind: ErrUnavailable}
}
