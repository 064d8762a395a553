package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Unique violations are mapped to ConflictError; the storage engine is the
//   single source of truth for conflict detection under concurrent registration.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "seva").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "seva",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const recordColumns = `id, name, email, email_norm, national_id, phone, photo_ref, password_hash, created_at`

// FindByEmailOrNationalID returns the first record matching either field.
func (s *PostgresStore) FindByEmailOrNationalID(ctx context.Context, emailNorm, nationalID string) (Record, bool, error) {
	const op = "identity.FindByEmailOrNationalID"

	if s == nil || s.pool == nil {
		return Record{}, false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	identities := pgIdent(s.schema, "identities")

	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		   FROM `+identities+`
		  WHERE email_norm = $1 OR national_id = $2
		  LIMIT 1`,
		emailNorm, nationalID,
	)
	return scanRecord(row)
}

// FindByNationalID looks up the login record, including its credential hash.
func (s *PostgresStore) FindByNationalID(ctx context.Context, nationalID string) (Record, bool, error) {
	const op = "identity.FindByNationalID"

	if s == nil || s.pool == nil {
		return Record{}, false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	identities := pgIdent(s.schema, "identities")

	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		   FROM `+identities+`
		  WHERE national_id = $1`,
		nationalID,
	)
	return scanRecord(row)
}

// Insert persists a new record, letting the database assign the id.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) (Record, error) {
	const op = "identity.Insert"

	if s == nil || s.pool == nil {
		return Record{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if rec.Name == "" || rec.Email == "" || rec.NationalID == "" || rec.CredentialHash == "" {
		return Record{}, pgInvalid(op, "missing required field")
	}

	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	identities := pgIdent(s.schema, "identities")

	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+identities+` (
		     name, email, email_norm, national_id, phone, photo_ref, password_hash, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		   RETURNING id`,
		rec.Name,
		rec.Email,
		rec.EmailNorm,
		rec.NationalID,
		pgTrimPtr(rec.Phone),
		pgTrimPtr(rec.PhotoRef),
		rec.CredentialHash,
		now,
	).Scan(&rec.ID)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Record{}, ConflictError{Op: op, Field: field}
		}
		return Record{}, err
	}

	rec.CreatedAt = now
	return rec, nil
}

// List returns summaries of all records, newest first. password_hash is not
// selected at all, so it cannot leak past this call.
func (s *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	const op = "identity.List"

	if s == nil || s.pool == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	identities := pgIdent(s.schema, "identities")

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, national_id, phone, photo_ref, created_at
		   FROM `+identities+`
		  ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Summary, 0, 64)
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.Email, &sm.NationalID, &sm.Phone, &sm.PhotoRef, &sm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// ---- helpers ----

func scanRecord(row pgx.Row) (Record, bool, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.EmailNorm,
		&rec.NationalID,
		&rec.Phone,
		&rec.PhotoRef,
		&rec.CredentialHash,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

// pgTrimPtr trims a string pointer, returning nil if result is empty.
func pgTrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_identities_email_norm":
		return "email", true
	case "uq_identities_national_id":
		return "national_id", true
	default:
		switch {
		case strings.Contains(c, "email"):
			return "email", true
		case strings.Contains(c, "national"):
			return "national_id", true
		default:
			return "unique", true
		}
	}
}
