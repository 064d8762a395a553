package identity

import (
	"context"
	"time"
)

// Record is one registered person's stored credentials and profile fields.
//
// IMPORTANT: CredentialHash is stored server-side and only travels between the
// store and the Service. It is never returned across the service boundary.
type Record struct {
	ID int64

	Name       string
	Email      string
	EmailNorm  string
	NationalID string

	Phone    *string
	PhotoRef *string

	CredentialHash string

	CreatedAt time.Time
}

// Summary is the outward-facing view of a Record, with the credential hash stripped.
type Summary struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	NationalID string    `json:"national_id"`
	Phone      *string   `json:"phone"`
	PhotoRef   *string   `json:"photo_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary strips the credential hash from a Record.
func (r Record) Summary() Summary {
	return Summary{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		NationalID: r.NationalID,
		Phone:      r.Phone,
		PhotoRef:   r.PhotoRef,
		CreatedAt:  r.CreatedAt,
	}
}

// Store is the credential persistence boundary. It owns no policy: uniqueness
// is enforced by the storage engine and surfaced as ConflictError from Insert.
type Store interface {
	// FindByEmailOrNationalID returns the first record matching either field.
	// Used to detect duplicates before insertion; ok is false when absent.
	FindByEmailOrNationalID(ctx context.Context, emailNorm, nationalID string) (Record, bool, error)

	// FindByNationalID is the login lookup, the only read path whose result's
	// CredentialHash is consumed. ok is false when absent.
	FindByNationalID(ctx context.Context, nationalID string) (Record, bool, error)

	// Insert persists a new record and returns it with ID assigned.
	//
	// The duplicate pre-check and Insert are not atomic; when a concurrent
	// registration wins the race, the storage-level unique constraint rejects
	// this insert and the store must return ConflictError.
	Insert(ctx context.Context, rec Record) (Record, error)

	// List returns all records, newest first, hashes stripped.
	List(ctx context.Context) ([]Summary, error)
}
