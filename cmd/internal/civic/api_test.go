package civic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"seva/cmd/internal/auth/token"
	"seva/cmd/internal/upload"
)

func newTestHandler(t *testing.T, opts ...HandlerOption) (*Handler, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h, err := NewHandler(log, store, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, store
}

func doAuthed(h *Handler, r *http.Request, subject int64) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)

	p := token.Principal{Subject: subject, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	r = r.WithContext(token.ContextWithPrincipal(r.Context(), p))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestGrievance_CreateAndList(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"area_name":"Ward 12","address":"14 Canal Rd","grievance_type":"drainage","description":"blocked drain"}`
	r := httptest.NewRequest(http.MethodPost, "/grievances", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	w := doAuthed(h, r, 7)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", w.Code, w.Body.String())
	}

	var g Grievance
	if err := json.NewDecoder(w.Body).Decode(&g); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if g.ID != 1 {
		t.Fatalf("expected id 1, got %d", g.ID)
	}
	if g.SubmittedBy == nil || *g.SubmittedBy != 7 {
		t.Fatalf("expected submitted_by 7, got %v", g.SubmittedBy)
	}
	if g.Description == nil || *g.Description != "blocked drain" {
		t.Fatalf("unexpected description %v", g.Description)
	}

	// Second submission lists before the first.
	body2 := `{"area_name":"Ward 3","address":"2 Hill St","grievance_type":"streetlight"}`
	r2 := httptest.NewRequest(http.MethodPost, "/grievances", strings.NewReader(body2))
	r2.Header.Set("Content-Type", "application/json")
	if w2 := doAuthed(h, r2, 7); w2.Code != http.StatusCreated {
		t.Fatalf("second create: status = %d", w2.Code)
	}

	wl := doAuthed(h, httptest.NewRequest(http.MethodGet, "/grievances", nil), 7)
	if wl.Code != http.StatusOK {
		t.Fatalf("list: status = %d", wl.Code)
	}
	var list []Grievance
	if err := json.NewDecoder(wl.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 grievances, got %d", len(list))
	}
	if list[0].Type != "streetlight" || list[1].Type != "drainage" {
		t.Fatalf("expected newest first, got %q then %q", list[0].Type, list[1].Type)
	}
}

func TestGrievance_Create_Validation(t *testing.T) {
	h, store := newTestHandler(t)

	cases := []string{
		`{"address":"somewhere","grievance_type":"water"}`,
		`{"area_name":"Ward 1","grievance_type":"water"}`,
		`{"area_name":"Ward 1","address":"somewhere"}`,
		`{"area_name":"  ","address":"somewhere","grievance_type":"water"}`,
	}
	for _, body := range cases {
		r := httptest.NewRequest(http.MethodPost, "/grievances", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		if w := doAuthed(h, r, 1); w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, w.Code)
		}
	}

	if got, _ := store.ListGrievances(context.Background()); len(got) != 0 {
		t.Fatalf("store should be empty after rejected input, has %d", len(got))
	}
}

func TestGrievance_Create_Multipart(t *testing.T) {
	photos, err := upload.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload.NewStore: %v", err)
	}
	h, _ := newTestHandler(t, WithPhotoStore(photos))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"area_name":      "Ward 9",
		"address":        "Market Sq",
		"grievance_type": "garbage",
	} {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("photo", "evidence.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/grievances", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := doAuthed(h, r, 3)
	if w.Code != http.StatusCreated {
		t.Fatalf("multipart create: status = %d, body %s", w.Code, w.Body.String())
	}

	var g Grievance
	if err := json.NewDecoder(w.Body).Decode(&g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.PhotoRef == nil || !strings.HasSuffix(*g.PhotoRef, ".jpg") {
		t.Fatalf("expected a .jpg photo_ref, got %v", g.PhotoRef)
	}
	if strings.Contains(*g.PhotoRef, "evidence") {
		t.Fatalf("photo_ref leaked the client filename: %q", *g.PhotoRef)
	}
}

func TestGrievance_Create_RejectedUploadIsRemoved(t *testing.T) {
	dir := t.TempDir()
	photos, err := upload.NewStore(dir)
	if err != nil {
		t.Fatalf("upload.NewStore: %v", err)
	}
	h, store := newTestHandler(t, WithPhotoStore(photos))

	// Photo part present but the required fields are not.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("area_name", "Ward 9"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	fw, err := mw.CreateFormFile("photo", "evidence.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/grievances", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	if w := doAuthed(h, r, 3); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	// Neither a record nor an orphaned file may remain.
	if got, _ := store.ListGrievances(context.Background()); len(got) != 0 {
		t.Fatalf("store should be empty, has %d", len(got))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected submission left %d files behind", len(entries))
	}
}

func TestGrievance_Delete(t *testing.T) {
	h, store := newTestHandler(t)

	g, err := store.InsertGrievance(context.Background(), Grievance{
		AreaName: "Ward 2", Address: "1 Main St", Type: "water",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if w := doAuthed(h, httptest.NewRequest(http.MethodDelete, "/grievances/999", nil), 1); w.Code != http.StatusNotFound {
		t.Fatalf("delete missing: status = %d, want 404", w.Code)
	}
	if w := doAuthed(h, httptest.NewRequest(http.MethodDelete, "/grievances/abc", nil), 1); w.Code != http.StatusNotFound {
		t.Fatalf("delete bad id: status = %d, want 404", w.Code)
	}
	if w := doAuthed(h, httptest.NewRequest(http.MethodDelete, "/grievances/1", nil), 1); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", w.Code)
	}
	if err := store.DeleteGrievance(context.Background(), g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("grievance still present after delete")
	}
}

func TestGrievance_Create_Notifies(t *testing.T) {
	var got []Grievance
	h, _ := newTestHandler(t, WithNotifier(func(g Grievance) { got = append(got, g) }))

	body := `{"area_name":"Ward 5","address":"Dock Rd","grievance_type":"road"}`
	r := httptest.NewRequest(http.MethodPost, "/grievances", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if w := doAuthed(h, r, 2); w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}

	if len(got) != 1 || got[0].Type != "road" {
		t.Fatalf("notifier not invoked with the accepted grievance: %+v", got)
	}
}

func TestDocumentRequest_Lifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"document_type":"birth_certificate","document_name":"Birth Certificate","email":"a@x.com","timeline":"2 weeks"}`
	r := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	w := doAuthed(h, r, 4)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", w.Code, w.Body.String())
	}
	var d DocumentRequest
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.ID != 1 || d.Timeline == nil || *d.Timeline != "2 weeks" {
		t.Fatalf("unexpected document request: %+v", d)
	}

	bad := `{"document_type":"birth_certificate","document_name":"x","email":"not-an-email"}`
	rb := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(bad))
	rb.Header.Set("Content-Type", "application/json")
	if w := doAuthed(h, rb, 4); w.Code != http.StatusBadRequest {
		t.Fatalf("bad email: status = %d, want 400", w.Code)
	}

	wl := doAuthed(h, httptest.NewRequest(http.MethodGet, "/documents", nil), 4)
	var list []DocumentRequest
	if err := json.NewDecoder(wl.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 document request, got %d", len(list))
	}

	if w := doAuthed(h, httptest.NewRequest(http.MethodDelete, "/documents/1", nil), 4); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", w.Code)
	}
	if w := doAuthed(h, httptest.NewRequest(http.MethodDelete, "/documents/1", nil), 4); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", w.Code)
	}
}
