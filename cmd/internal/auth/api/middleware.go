package authapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"seva/cmd/internal/auth/token"
)

// RequireAuth verifies the bearer token and attaches the principal to
// the request context before calling next.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "token_missing", "bearer token required")
			return
		}

		p, err := h.svc.Verify(raw, time.Now())
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "token_invalid", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(token.ContextWithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
