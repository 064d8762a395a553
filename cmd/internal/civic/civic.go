package civic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a grievance or document request does
	// not exist.
	ErrNotFound = errors.New("civic: not found")

	// ErrInvalidInput marks a validation failure on caller input.
	ErrInvalidInput = errors.New("civic: invalid input")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("civic: storage unavailable")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Grievance is a citizen complaint about a civic issue in some area.
type Grievance struct {
	ID          int64     `json:"id"`
	AreaName    string    `json:"area_name"`
	Address     string    `json:"address"`
	Type        string    `json:"grievance_type"`
	Description *string   `json:"description,omitempty"`
	PhotoRef    *string   `json:"photo_ref,omitempty"`
	SubmittedBy *int64    `json:"submitted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GrievanceInput carries the caller-supplied fields of a new grievance.
type GrievanceInput struct {
	AreaName    string `json:"area_name"`
	Address     string `json:"address"`
	Type        string `json:"grievance_type"`
	Description string `json:"description"`
}

// Validate trims the input and reports the first missing required field.
func (in *GrievanceInput) Validate() error {
	in.AreaName = strings.TrimSpace(in.AreaName)
	in.Address = strings.TrimSpace(in.Address)
	in.Type = strings.TrimSpace(in.Type)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.AreaName == "":
		return invalidf("area_name is required")
	case in.Address == "":
		return invalidf("address is required")
	case in.Type == "":
		return invalidf("grievance_type is required")
	}
	return nil
}

// Grievance builds the record to persist. submittedBy and photoRef are
// optional; zero/empty values are stored as NULL.
func (in GrievanceInput) Grievance(submittedBy int64, photoRef string, now time.Time) Grievance {
	g := Grievance{
		AreaName:  in.AreaName,
		Address:   in.Address,
		Type:      in.Type,
		CreatedAt: now.UTC(),
	}
	if in.Description != "" {
		g.Description = &in.Description
	}
	if photoRef != "" {
		g.PhotoRef = &photoRef
	}
	if submittedBy > 0 {
		g.SubmittedBy = &submittedBy
	}
	return g
}

// DocumentRequest is a citizen request for an official document copy.
type DocumentRequest struct {
	ID            int64     `json:"id"`
	DocumentType  string    `json:"document_type"`
	DocumentName  string    `json:"document_name"`
	Timeline      *string   `json:"timeline,omitempty"`
	Email         string    `json:"email"`
	RequesterName *string   `json:"requester_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentRequestInput carries the caller-supplied fields of a new
// document request.
type DocumentRequestInput struct {
	DocumentType  string `json:"document_type"`
	DocumentName  string `json:"document_name"`
	Timeline      string `json:"timeline"`
	Email         string `json:"email"`
	RequesterName string `json:"requester_name"`
}

// Validate trims the input and reports the first missing required field.
func (in *DocumentRequestInput) Validate() error {
	in.DocumentType = strings.TrimSpace(in.DocumentType)
	in.DocumentName = strings.TrimSpace(in.DocumentName)
	in.Timeline = strings.TrimSpace(in.Timeline)
	in.Email = strings.TrimSpace(in.Email)
	in.RequesterName = strings.TrimSpace(in.RequesterName)

	switch {
	case in.DocumentType == "":
		return invalidf("document_type is required")
	case in.DocumentName == "":
		return invalidf("document_name is required")
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return invalidf("a valid email is required")
	}
	return nil
}

// DocumentRequest builds the record to persist.
func (in DocumentRequestInput) DocumentRequest(now time.Time) DocumentRequest {
	d := DocumentRequest{
		DocumentType: in.DocumentType,
		DocumentName: in.DocumentName,
		Email:        in.Email,
		CreatedAt:    now.UTC(),
	}
	if in.Timeline != "" {
		d.Timeline = &in.Timeline
	}
	if in.RequesterName != "" {
		d.RequesterName = &in.RequesterName
	}
	return d
}
