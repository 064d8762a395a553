// Package app wires the seva server runtime: config, logging, metrics,
// storage, and the HTTP surface (auth, civic records, grievance feed).
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"seva/cmd/identity"
	authapi "seva/cmd/internal/auth/api"
	"seva/cmd/internal/auth/token"
	"seva/cmd/internal/civic"
	"seva/cmd/internal/feed"
	"seva/cmd/internal/upload"
	"seva/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the seva server runtime: it owns HTTP server wiring and the
// handler dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics *Metrics

	auth  *authapi.Handler
	civic *civic.Handler
	feed  *feed.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	tokCfg, err := token.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, tokCfg); err != nil {
		return nil, err
	}
	tokens, err := token.NewHS256Manager(tokCfg)
	if err != nil {
		return nil, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, idStore, cvStore, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	photos, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	svc, err := identity.NewService(log, idStore, pwCfg, tokens)
	if err != nil {
		return nil, err
	}

	authOpts := []authapi.HandlerOption{authapi.WithPhotoStore(photos)}
	if dbEnabled {
		authOpts = append(authOpts, authapi.WithAuditLog(dbPool, cfg.DBSchema))
	}
	authHandler, err := authapi.NewHandler(log, svc, authapi.LoadConfigFromEnv(), authOpts...)
	if err != nil {
		return nil, err
	}

	hub := feed.NewHub(log)
	gateway := feed.NewGateway(log, hub, svc.Verify,
		feed.WithOriginPatterns(cfg.FeedAllowedOrigins))

	civicHandler, err := civic.NewHandler(log, cvStore,
		civic.WithPhotoStore(photos),
		civic.WithNotifier(hub.BroadcastGrievance))
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   NewMetrics(),
		auth:      authHandler,
		civic:     civicHandler,
		feed:      gateway,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.civic, a.feed, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.metrics.Instrument(WithRequestLogging(mux, a.log)),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the
// in-memory dev stores.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, identity.Store, civic.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, identity.NewMemoryStore(), civic.NewMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, nil, err
	}

	// Ownership model: app owns the pool lifecycle; the stores never
	// close it.
	idStore, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, err
	}
	cvStore, err := civic.NewPostgresStore(pool, civic.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

	return dbStore{pool: pool}, pool, true, idStore, cvStore, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
