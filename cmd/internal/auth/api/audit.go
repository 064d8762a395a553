package authapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

func (h *Handler) auditRegisterSuccess(ctx context.Context, identityID int64, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.register.success", &identityID, ip, ua, nil)
}

func (h *Handler) auditRegisterConflict(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.register.conflict", nil, ip, ua, nil)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, identityID int64, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.login.success", &identityID, ip, ua, nil)
}

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua string, reason string) {
	h.insertAudit(ctx, "auth.login.failed", nil, ip, ua, map[string]any{
		"reason": reason,
	})
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua string, retryAfter time.Duration) {
	h.insertAudit(ctx, "auth.login.rate_limited", nil, ip, ua, map[string]any{
		"retry_after_s": int64(retryAfter.Seconds()),
	})
}

// insertAudit records an auth event best-effort: failures are logged and
// swallowed so auditing never blocks the request path.
func (h *Handler) insertAudit(ctx context.Context, action string, identityID *int64, ip net.IP, ua string, meta map[string]any) {
	if h == nil || h.pool == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	auditLog := pgx.Identifier{h.schema, "audit_log"}.Sanitize()

	_, err := h.pool.Exec(ctx, `
		INSERT INTO `+auditLog+` (
			identity_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, identityID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
