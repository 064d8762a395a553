package app

import (
	"net/http"
	"time"

	authapi "seva/cmd/internal/auth/api"
	"seva/cmd/internal/civic"
	"seva/cmd/internal/feed"

	"github.com/jackc/pgx/v5/pgxpool"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	auth *authapi.Handler,
	civicHandler *civic.Handler,
	feedGateway *feed.Gateway,
	metrics *Metrics,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	if auth != nil {
		auth.Register(mux)
	}

	// Civic routes sit behind the same bearer-token check as /users.
	if civicHandler != nil && auth != nil {
		civicMux := http.NewServeMux()
		civicHandler.Register(civicMux)
		protected := auth.RequireAuth(civicMux)
		for _, p := range []string{"/grievances", "/grievances/", "/documents", "/documents/"} {
			mux.Handle(p, protected)
		}
	}

	if feedGateway != nil {
		mux.HandleFunc("/feed", feedGateway.HandleWS)
	}
}
