package civic

import "context"

// Store persists grievances and document requests. Implementations map
// their backend errors to the package sentinels; deletes return
// ErrNotFound when the id does not exist.
type Store interface {
	InsertGrievance(ctx context.Context, g Grievance) (Grievance, error)
	ListGrievances(ctx context.Context) ([]Grievance, error)
	DeleteGrievance(ctx context.Context, id int64) error

	InsertDocumentRequest(ctx context.Context, d DocumentRequest) (DocumentRequest, error)
	ListDocumentRequests(ctx context.Context) ([]DocumentRequest, error)
	DeleteDocumentRequest(ctx context.Context, id int64) error
}
