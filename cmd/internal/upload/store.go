package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrTooLarge is returned when an upload exceeds the store's size cap.
	ErrTooLarge = errors.New("upload: file too large")

	// ErrUnsupportedType is returned for file extensions the store does
	// not accept.
	ErrUnsupportedType = errors.New("upload: unsupported file type")
)

// DefaultMaxBytes caps profile photos at 5 MiB.
const DefaultMaxBytes int64 = 5 << 20

// allowedExts lists the photo extensions the store accepts. Matching is
// case-insensitive on the client-supplied filename.
var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Store writes uploaded files under a single directory.
type Store struct {
	dir      string
	maxBytes int64
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes overrides the per-file size cap.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewStore creates the upload directory if needed and returns a store
// rooted at it.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload: dir is required")
	}

	s := &Store{dir: dir, maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create dir: %w", err)
	}
	return s, nil
}

// Save streams r to disk and returns the generated file reference. The
// reference is a ULID plus the normalized extension of originalName;
// the original name itself is never persisted.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExts[ext] {
		return "", ErrUnsupportedType
	}

	ref := ulid.Make().String() + ext
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: create file: %w", err)
	}

	// Read one byte past the cap so oversized uploads are detected
	// without trusting a client-supplied length.
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("upload: write file: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(path)
		return "", ErrTooLarge
	}

	return ref, nil
}

// Remove deletes a previously saved file. Removing a reference that no
// longer exists is not an error.
func (s *Store) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if err := os.Remove(s.Path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: remove file: %w", err)
	}
	return nil
}

// MaxBytes reports the store's per-file size cap.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Path resolves a previously returned reference to its on-disk path.
func (s *Store) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}
