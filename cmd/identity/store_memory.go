package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when no database is configured and
// throughout the test suite. It enforces the same uniqueness invariants as
// the Postgres schema so conflict behavior matches across backends.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make([]Record, 0, 64)}
}

// FindByEmailOrNationalID returns the first record matching either field.
func (s *MemoryStore) FindByEmailOrNationalID(ctx context.Context, emailNorm, nationalID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.EmailNorm == emailNorm || r.NationalID == nationalID {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// FindByNationalID looks up the login record.
func (s *MemoryStore) FindByNationalID(ctx context.Context, nationalID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.NationalID == nationalID {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// Insert persists a new record with a monotonically assigned id.
// Ids are assigned exactly once and never reused, matching BIGSERIAL behavior.
func (s *MemoryStore) Insert(ctx context.Context, rec Record) (Record, error) {
	const op = "identity.Insert"

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if rec.Name == "" || rec.Email == "" || rec.NationalID == "" || rec.CredentialHash == "" {
		return Record{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing required field"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.EmailNorm == rec.EmailNorm {
			return Record{}, ConflictError{Op: op, Field: "email"}
		}
		if r.NationalID == rec.NationalID {
			return Record{}, ConflictError{Op: op, Field: "national_id"}
		}
	}

	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.records = append(s.records, rec)
	return rec, nil
}

// List returns summaries of all records, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		out = append(out, s.records[i].Summary())
	}
	return out, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
