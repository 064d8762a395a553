package civic

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists civic records over PostgreSQL. The pool is
// owned by the caller and is never closed here.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var schemaIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "seva").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !schemaIdentRe.MatchString(schema) {
			return fmt.Errorf("civic: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
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
		return nil, fmt.Errorf("civic: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// InsertGrievance persists a grievance, letting the database assign the id.
func (s *PostgresStore) InsertGrievance(ctx context.Context, g Grievance) (Grievance, error) {
	if err := ctx.Err(); err != nil {
		return Grievance{}, err
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table("grievances")+` (
		     area_name, address, grievance_type, photo_ref, description, submitted_by, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7)
		   RETURNING id`,
		g.AreaName, g.Address, g.Type, g.PhotoRef, g.Description, g.SubmittedBy, g.CreatedAt,
	).Scan(&g.ID)
	if err != nil {
		return Grievance{}, fmt.Errorf("civic: insert grievance: %w", err)
	}
	return g, nil
}

// ListGrievances returns all grievances, newest first.
func (s *PostgresStore) ListGrievances(ctx context.Context) ([]Grievance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, area_name, address, grievance_type, photo_ref, description, submitted_by, created_at
		   FROM `+s.table("grievances")+`
		  ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("civic: list grievances: %w", err)
	}
	defer rows.Close()

	out := make([]Grievance, 0, 32)
	for rows.Next() {
		var g Grievance
		if err := rows.Scan(&g.ID, &g.AreaName, &g.Address, &g.Type, &g.PhotoRef, &g.Description, &g.SubmittedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGrievance removes a grievance; ErrNotFound when the id is absent.
func (s *PostgresStore) DeleteGrievance(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table("grievances")+` WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("civic: delete grievance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertDocumentRequest persists a document request.
func (s *PostgresStore) InsertDocumentRequest(ctx context.Context, d DocumentRequest) (DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return DocumentRequest{}, err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table("document_requests")+` (
		     document_type, document_name, timeline, email, requester_name, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)
		   RETURNING id`,
		d.DocumentType, d.DocumentName, d.Timeline, d.Email, d.RequesterName, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return DocumentRequest{}, fmt.Errorf("civic: insert document request: %w", err)
	}
	return d, nil
}

// ListDocumentRequests returns all document requests, newest first.
func (s *PostgresStore) ListDocumentRequests(ctx context.Context) ([]DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, document_type, document_name, timeline, email, requester_name, created_at
		   FROM `+s.table("document_requests")+`
		  ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("civic: list document requests: %w", err)
	}
	defer rows.Close()

	out := make([]DocumentRequest, 0, 32)
	for rows.Next() {
		var d DocumentRequest
		if err := rows.Scan(&d.ID, &d.DocumentType, &d.DocumentName, &d.Timeline, &d.Email, &d.RequesterName, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocumentRequest removes a request; ErrNotFound when the id is absent.
func (s *PostgresStore) DeleteDocumentRequest(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table("document_requests")+` WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("civic: delete document request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
