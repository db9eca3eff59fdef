package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/users/{id}", "404"))
	require.Equal(t, float64(3), got)
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMiddleware_DefaultStatusAndUnmatched(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/ok", "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestAuthEvent(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.AuthEvent("login", ResultFail)
	m.AuthEvent("login", ResultFail)
	m.AuthEvent("login", ResultOK)

	require.Equal(t, float64(2), testutil.ToFloat64(m.authEvents.WithLabelValues("login", ResultFail)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.authEvents.WithLabelValues("login", ResultOK)))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.AuthEvent("signup", ResultOK)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `koach_auth_events_total{event="signup",result="ok"} 1`))
}

func TestNilMetrics_NoPanic(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.AuthEvent("login", ResultOK)
	m.ObserveRequest(http.MethodGet, "/", http.StatusOK, 0)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
}
