package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authapi "koach/cmd/internal/auth/api"
	"koach/cmd/internal/telemetry"
)

// Pinger reports whether the backing store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(cfg Config, log Logger, store Pinger, persistent bool, metrics *telemetry.Metrics, auth *authapi.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, log) })
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(WithSecurityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !persistent {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			log.Info("readyz.db.not_ready", "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if auth != nil {
		auth.Register(r)
	}

	return WithCORS(r, cfg, log)
}
