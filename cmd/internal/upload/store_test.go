package upload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_Save(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ref, err := s.Save("portrait.JPG", bytes.NewReader([]byte("fake-jpeg-bytes")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.HasSuffix(ref, ".jpg") {
		t.Fatalf("expected normalized .jpg suffix, got %q", ref)
	}
	if strings.Contains(ref, "portrait") {
		t.Fatalf("reference leaked the original filename: %q", ref)
	}

	data, err := os.ReadFile(s.Path(ref))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "fake-jpeg-bytes" {
		t.Fatalf("stored bytes do not match upload")
	}
}

func TestStore_Save_UniqueRefs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		ref, err := s.Save("photo.png", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = true
	}
}

func TestStore_Save_RejectsUnsupportedType(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for _, name := range []string{"doc.pdf", "script.sh", "noext", ""} {
		if _, err := s.Save(name, bytes.NewReader([]byte("x"))); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("Save(%q): expected ErrUnsupportedType, got %v", name, err)
		}
	}
}

func TestStore_Save_TooLarge(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, WithMaxBytes(8))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := s.Save("big.png", bytes.NewReader(make([]byte, 9))); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	// The partial file must not be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir after rejected upload, found %d entries", len(entries))
	}

	if _, err := s.Save("ok.png", bytes.NewReader(make([]byte, 8))); err != nil {
		t.Fatalf("Save at cap: %v", err)
	}
}

func TestStore_Remove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ref, err := s.Save("photo.png", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Remove(ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(s.Path(ref)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present after Remove: %v", err)
	}

	// Removing again (or an empty ref) is a no-op.
	if err := s.Remove(ref); err != nil {
		t.Fatalf("Remove of missing ref: %v", err)
	}
	if err := s.Remove(""); err != nil {
		t.Fatalf("Remove of empty ref: %v", err)
	}
}

func TestStore_MaxBytes(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := s.MaxBytes(); got != DefaultMaxBytes {
		t.Fatalf("MaxBytes() = %d, want default %d", got, DefaultMaxBytes)
	}

	s, err = NewStore(t.TempDir(), WithMaxBytes(64))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := s.MaxBytes(); got != 64 {
		t.Fatalf("MaxBytes() = %d, want 64", got)
	}
}

func TestStore_Path_StripsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	got := s.Path("../../etc/passwd")
	if filepath.Dir(got) != filepath.Clean(s.dir) {
		t.Fatalf("Path escaped the store dir: %q", got)
	}
}
