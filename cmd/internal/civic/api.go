package civic

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seva/cmd/internal/auth/token"
	"seva/cmd/internal/upload"
)

const defaultMaxBodyBytes = 1 << 20

// Handler serves the grievance and document-request endpoints. All
// routes expect the auth middleware to have verified a bearer token
// already; the principal is read from the request context.
type Handler struct {
	log    *slog.Logger
	store  Store
	photos *upload.Store
	notify func(Grievance)

	maxBodyBytes int64
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithPhotoStore enables photo attachments on grievance submissions.
func WithPhotoStore(photos *upload.Store) HandlerOption {
	return func(h *Handler) { h.photos = photos }
}

// WithNotifier registers a callback invoked after every accepted
// grievance, e.g. to broadcast it on the live feed.
func WithNotifier(fn func(Grievance)) HandlerOption {
	return func(h *Handler) {
		if fn != nil {
			h.notify = fn
		}
	}
}

// WithMaxBodyBytes overrides the JSON body size cap.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler constructs the civic HTTP handler.
func NewHandler(log *slog.Logger, store Store, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("civic: nil store")
	}

	h := &Handler{
		log:          log,
		store:        store,
		notify:       func(Grievance) {},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires civic routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/grievances", h.handleGrievances)
	mux.HandleFunc("/grievances/", h.handleGrievanceByID)
	mux.HandleFunc("/documents", h.handleDocuments)
	mux.HandleFunc("/documents/", h.handleDocumentByID)
}

func (h *Handler) handleGrievances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		out, err := h.store.ListGrievances(r.Context())
		if err != nil {
			h.storeFault(w, "civic.grievances.list.fail", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		h.handleGrievanceCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGrievanceCreate(w http.ResponseWriter, r *http.Request) {
	var (
		in       GrievanceInput
		photoRef string
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		ref, err := h.decodeGrievanceForm(w, r, &in)
		if err != nil {
			switch {
			case errors.Is(err, upload.ErrTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, "photo_too_large", "photo exceeds the size limit")
			case errors.Is(err, upload.ErrUnsupportedType):
				writeError(w, http.StatusBadRequest, "photo_unsupported", "unsupported photo type")
			default:
				writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
			}
			return
		}
		photoRef = ref
	} else {
		if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
			if bodyTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	if err := in.Validate(); err != nil {
		h.removePhoto(photoRef)
		writeError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
		return
	}

	var submittedBy int64
	if p, ok := token.PrincipalFromContext(r.Context()); ok {
		submittedBy = p.Subject
	}

	g, err := h.store.InsertGrievance(r.Context(), in.Grievance(submittedBy, photoRef, time.Now()))
	if err != nil {
		h.removePhoto(photoRef)
		h.storeFault(w, "civic.grievances.create.fail", err)
		return
	}

	h.log.Info("civic.grievances.create",
		"id", g.ID,
		"type", g.Type,
		"area", g.AreaName,
		"has_photo", g.PhotoRef != nil,
	)
	h.notify(g)

	writeJSON(w, http.StatusCreated, g)
}

// decodeGrievanceForm reads the multipart fields and stores the optional
// photo part, returning its reference.
func (h *Handler) decodeGrievanceForm(w http.ResponseWriter, r *http.Request, in *GrievanceInput) (string, error) {
	limit := h.maxBodyBytes
	if h.photos != nil {
		limit += h.photos.MaxBytes()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		return "", err
	}

	in.AreaName = r.FormValue("area_name")
	in.Address = r.FormValue("address")
	in.Type = r.FormValue("grievance_type")
	in.Description = r.FormValue("description")

	if h.photos == nil {
		return "", nil
	}
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	return h.photos.Save(header.Filename, file)
}

func (h *Handler) handleGrievanceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := idFromPath(r.URL.Path, "/grievances/")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such grievance")
		return
	}

	if err := h.store.DeleteGrievance(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such grievance")
			return
		}
		h.storeFault(w, "civic.grievances.delete.fail", err)
		return
	}

	h.log.Info("civic.grievances.delete", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		out, err := h.store.ListDocumentRequests(r.Context())
		if err != nil {
			h.storeFault(w, "civic.documents.list.fail", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		h.handleDocumentCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDocumentCreate(w http.ResponseWriter, r *http.Request) {
	var in DocumentRequestInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		if bodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
		return
	}

	d, err := h.store.InsertDocumentRequest(r.Context(), in.DocumentRequest(time.Now()))
	if err != nil {
		h.storeFault(w, "civic.documents.create.fail", err)
		return
	}

	h.log.Info("civic.documents.create", "id", d.ID, "document_type", d.DocumentType)
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := idFromPath(r.URL.Path, "/documents/")
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such document request")
		return
	}

	if err := h.store.DeleteDocumentRequest(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such document request")
			return
		}
		h.storeFault(w, "civic.documents.delete.fail", err)
		return
	}

	h.log.Info("civic.documents.delete", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// removePhoto drops a stored photo whose grievance was rejected, so no
// file is left without a record referencing it.
func (h *Handler) removePhoto(ref string) {
	if ref == "" || h.photos == nil {
		return
	}
	if err := h.photos.Remove(ref); err != nil {
		h.log.Warn("civic.photo.cleanup.fail", "err", err)
	}
}

func (h *Handler) storeFault(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, "err", err)
	writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
}

func idFromPath(path, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
