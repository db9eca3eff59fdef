// Package app wires the koach server runtime: config, logging, the identity
// store, account services and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"koach/cmd/internal/accounts"
	authapi "koach/cmd/internal/auth/api"
	"koach/cmd/internal/telemetry"
	"koach/cmd/security/token"
)

// App is the koach server runtime: it owns the HTTP server and the store.
type App struct {
	cfg     Config
	log     Logger
	store   storeHandle
	handler http.Handler
}

// New constructs a fully wired App from config and security settings.
func New(ctx context.Context, cfg Config, sec Security, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(sec.Token)
	if err != nil {
		return nil, err
	}

	st, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	svc, err := accounts.NewService(st, sec.Password, tokens, accounts.WithLogger(log))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	authHandler, err := authapi.NewHandler(log, svc, authCfg, authapi.WithMetrics(metrics))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		log:     log,
		store:   st,
		handler: newRouter(cfg, log, st, st.persistent, metrics, authHandler),
	}, nil
}

// Handler exposes the fully wrapped router.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.cfg.Store)

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
		_ = a.store.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(); err != nil {
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
