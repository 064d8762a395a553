package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are opt-in and require SEVA_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_Insert_ConflictNationalID(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.Insert(ctx, testRecord("Alice", "a@x.com", "111"))
	if err != nil {
		t.Fatalf("insert 1: %v", err)
	}

	// Same national id, different email: the unique constraint must reject it.
	_, err = s.Insert(ctx, testRecord("Bob", "b@x.com", "111"))
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}

	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "national_id" {
		t.Fatalf("expected national_id field classification, got: %v", err)
	}
}

func TestPostgresStore_Insert_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.Insert(ctx, testRecord("Alice", "User@Example.com", "111"))
	if err != nil {
		t.Fatalf("insert 1: %v", err)
	}

	_, err = s.Insert(ctx, testRecord("Mallory", "user@example.COM", "222"))
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}

	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "email" {
		t.Fatalf("expected email field classification, got: %v", err)
	}
}

func TestPostgresStore_FindPaths(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	in := testRecord("Alice", "a@x.com", "111")
	phone := "555-0101"
	in.Phone = &phone

	created, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("expected assigned id, got %d", created.ID)
	}

	rec, ok, err := s.FindByNationalID(ctx, "111")
	if err != nil || !ok {
		t.Fatalf("find by national id: ok=%v err=%v", ok, err)
	}
	if rec.CredentialHash == "" {
		t.Fatalf("login lookup must carry the credential hash")
	}
	if rec.Phone == nil || *rec.Phone != phone {
		t.Fatalf("phone round-trip failed: %+v", rec.Phone)
	}

	if _, ok, err := s.FindByEmailOrNationalID(ctx, "a@x.com", "zzz"); err != nil || !ok {
		t.Fatalf("find by email: ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.FindByEmailOrNationalID(ctx, "zzz@x.com", "zzz"); err != nil || ok {
		t.Fatalf("expected absence: ok=%v err=%v", ok, err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

// ---- helpers ----

func testRecord(name, email, nationalID string) Record {
	return Record{
		Name:           name,
		Email:          email,
		EmailNorm:      NormalizeEmail(email),
		NationalID:     nationalID,
		CredentialHash: "$2a$04$fakefakefakefakefakefakefakefakefakefakefakefakefakefa",
		CreatedAt:      time.Now().UTC(),
	}
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("SEVA_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: SEVA_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse SEVA_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (SEVA_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "seva_it_" + strings.ToLower(ulid.Make().String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgxIdent1(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustApplyIdentitySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	identities := pgIdent(schema, "identities")

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  national_id TEXT NOT NULL,
  phone TEXT NULL,
  photo_ref TEXT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_identities_hash_nonempty CHECK (password_hash <> ''),
  CONSTRAINT uq_identities_email_norm UNIQUE (email_norm),
  CONSTRAINT uq_identities_national_id UNIQUE (national_id)
);
`, identities)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgxIdent1(schema)+` CASCADE`)
}

func mustNewIdentityStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func pgxIdent1(ident string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection in dynamic DDL.
	return pgx.Identifier{ident}.Sanitize()
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}
