package authapi

import (
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"seva/cmd/identity"
	"seva/cmd/internal/auth/token"
	"seva/cmd/internal/upload"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires the registration and login endpoints to the identity
// service.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc *identity.Service

	photos *upload.Store

	// Audit trail; nil pool disables auditing (memory-store runs).
	pool   *pgxpool.Pool
	schema string

	throttle *ipThrottle
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithPhotoStore enables profile photo uploads on registration.
func WithPhotoStore(photos *upload.Store) HandlerOption {
	return func(h *Handler) { h.photos = photos }
}

// WithAuditLog enables best-effort audit inserts into schema.audit_log.
func WithAuditLog(pool *pgxpool.Pool, schema string) HandlerOption {
	return func(h *Handler) {
		h.pool = pool
		if strings.TrimSpace(schema) != "" {
			h.schema = schema
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, svc *identity.Service, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("auth: nil identity service")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		svc:      svc,
		schema:   "seva",
		throttle: newIPThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
	mux.Handle("/users", h.RequireAuth(http.HandlerFunc(h.handleUsers)))
	mux.Handle("/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	var req registerRequest
	var photoRef string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		ref, err := h.decodeRegisterForm(w, r, &req)
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
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			if bodyTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	in := identity.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		NationalID: req.NationalID,
		Password:   req.Password,
	}
	if p := strings.TrimSpace(req.Phone); p != "" {
		in.Phone = &p
	}
	if photoRef != "" {
		in.PhotoRef = &photoRef
	}

	sum, err := h.svc.Register(ctx, time.Now(), in)
	if err != nil {
		// A rejected registration must not leave its photo behind.
		if photoRef != "" {
			if rerr := h.photos.Remove(photoRef); rerr != nil {
				h.log.Warn("auth.register.photo.cleanup.fail", "err", rerr)
			}
		}
		switch {
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case identity.IsConflict(err):
			// Do not reveal which field collided.
			h.auditRegisterConflict(ctx, ip, ua)
			writeError(w, http.StatusConflict, "already_registered", "identity already exists")
		case identity.IsUnavailable(err):
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditRegisterSuccess(ctx, sum.ID, ip, ua)
	writeJSON(w, http.StatusCreated, sum)
}

// decodeRegisterForm reads the multipart fields and stores the optional
// photo part, returning its reference.
func (h *Handler) decodeRegisterForm(w http.ResponseWriter, r *http.Request, req *registerRequest) (string, error) {
	limit := h.cfg.MaxBodyBytes
	if h.photos != nil {
		limit += h.photos.MaxBytes()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.cfg.MaxBodyBytes); err != nil {
		return "", err
	}

	req.Name = r.FormValue("name")
	req.Email = r.FormValue("email")
	req.NationalID = r.FormValue("national_id")
	req.Phone = r.FormValue("phone")
	req.Password = r.FormValue("password")

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

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := time.Now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	throttleKey := ""
	if ip != nil {
		throttleKey = ip.String()
	}
	if ok, retryAfter := h.throttle.Allow(throttleKey, now); !ok {
		h.auditLoginRateLimited(ctx, ip, ua, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		if bodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	tok, exp, err := h.svc.Authenticate(ctx, now, req.NationalID, req.Password)
	if err != nil {
		switch {
		case identity.IsInvalidCredentials(err):
			h.auditLoginFailed(ctx, ip, ua, "invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case identity.IsUnavailable(err):
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
		default:
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	if p, err := h.svc.Verify(tok, now); err == nil {
		h.auditLoginSuccess(ctx, p.Subject, ip, ua)
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: tok, ExpiresAt: exp})
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	out, err := h.svc.List(r.Context())
	if err != nil {
		if identity.IsUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry later")
			return
		}
		h.log.Error("auth.users.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, ok := token.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "token_missing", "bearer token required")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Subject:   p.Subject,
		IssuedAt:  p.IssuedAt,
		ExpiresAt: p.ExpiresAt,
	})
}

// ---- request metadata ----

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
