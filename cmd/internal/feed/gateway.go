package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"seva/cmd/internal/auth/token"

	"github.com/coder/websocket"
)

const (
	defaultWriteTimeout     = 5 * time.Second
	defaultHeartbeatEvery   = 30 * time.Second
	defaultHeartbeatTimeout = 5 * time.Second

	maxPingFailures = 3
)

// TokenVerifier checks a bearer token during the websocket handshake.
type TokenVerifier func(tokenStr string, now time.Time) (token.Principal, error)

// Gateway upgrades authenticated requests to websocket feed sessions.
type Gateway struct {
	log    *slog.Logger
	hub    *Hub
	verify TokenVerifier

	originPatterns []string

	writeTimeout     time.Duration
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithOriginPatterns authorizes cross-origin handshakes from the given
// host patterns. Same-host handshakes are always allowed.
func WithOriginPatterns(patterns []string) GatewayOption {
	return func(g *Gateway) { g.originPatterns = patterns }
}

// WithWriteTimeout overrides the per-frame write deadline.
func WithWriteTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// WithHeartbeat overrides the ping interval and per-ping timeout.
func WithHeartbeat(every, timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		if every > 0 {
			g.heartbeatEvery = every
		}
		if timeout > 0 {
			g.heartbeatTimeout = timeout
		}
	}
}

// NewGateway constructs a feed gateway.
func NewGateway(log *slog.Logger, hub *Hub, verify TokenVerifier, opts ...GatewayOption) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}

	g := &Gateway{
		log:              log,
		hub:              hub,
		verify:           verify,
		writeTimeout:     defaultWriteTimeout,
		heartbeatEvery:   defaultHeartbeatEvery,
		heartbeatTimeout: defaultHeartbeatTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// ServeHTTP adapter so the gateway mounts as an http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS verifies the bearer token, upgrades the connection, and
// streams feed envelopes until the peer disconnects.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	principal, ok := g.authenticate(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("feed.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	listenerID, frames := g.hub.Subscribe()
	defer g.hub.Unsubscribe(listenerID)

	g.log.Info("feed.connect", "listener_id", listenerID, "subject", principal.Subject)
	defer g.log.Info("feed.disconnect", "listener_id", listenerID)

	// Broadcast-only: CloseRead drains inbound frames and cancels the
	// context when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(g.heartbeatEvery)
	defer ticker.Stop()

	pingFailures := 0
	for {
		select {
		case <-ctx.Done():
			return

		case env, open := <-frames:
			if !open {
				return
			}
			if err := g.writeEnvelope(ctx, conn, env); err != nil {
				g.log.Info("feed.write.fail", "listener_id", listenerID, "err", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, g.heartbeatTimeout)
			err := conn.Ping(pingCtx)
			cancel()

			if err != nil {
				pingFailures++
				if pingFailures >= maxPingFailures {
					_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			pingFailures = 0
		}
	}
}

// authenticate accepts the token from the Authorization header or, for
// browser websocket clients that cannot set headers, a token query
// parameter.
func (g *Gateway) authenticate(r *http.Request) (token.Principal, bool) {
	raw := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if raw == "" || g.verify == nil {
		return token.Principal{}, false
	}

	p, err := g.verify(raw, time.Now())
	if err != nil {
		g.log.Info("feed.reject.token", "remote", r.RemoteAddr, "err", err)
		return token.Principal{}, false
	}
	return p, true
}

func (g *Gateway) writeEnvelope(ctx context.Context, conn *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
