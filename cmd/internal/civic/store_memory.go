package civic

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and database-less
// development runs.
type MemoryStore struct {
	mu sync.Mutex

	nextGrievanceID int64
	grievances      []Grievance

	nextDocumentID int64
	documents      []DocumentRequest
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertGrievance(ctx context.Context, g Grievance) (Grievance, error) {
	if err := ctx.Err(); err != nil {
		return Grievance{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextGrievanceID++
	g.ID = m.nextGrievanceID
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	m.grievances = append(m.grievances, g)
	return g, nil
}

func (m *MemoryStore) ListGrievances(ctx context.Context) ([]Grievance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Grievance, 0, len(m.grievances))
	for i := len(m.grievances) - 1; i >= 0; i-- {
		out = append(out, m.grievances[i])
	}
	return out, nil
}

func (m *MemoryStore) DeleteGrievance(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, g := range m.grievances {
		if g.ID == id {
			m.grievances = append(m.grievances[:i], m.grievances[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) InsertDocumentRequest(ctx context.Context, d DocumentRequest) (DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return DocumentRequest{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextDocumentID++
	d.ID = m.nextDocumentID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	m.documents = append(m.documents, d)
	return d, nil
}

func (m *MemoryStore) ListDocumentRequests(ctx context.Context) ([]DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DocumentRequest, 0, len(m.documents))
	for i := len(m.documents) - 1; i >= 0; i-- {
		out = append(out, m.documents[i])
	}
	return out, nil
}

func (m *MemoryStore) DeleteDocumentRequest(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.documents {
		if d.ID == id {
			m.documents = append(m.documents[:i], m.documents[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
