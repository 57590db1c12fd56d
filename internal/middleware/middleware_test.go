package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blogspace/internal/observability"
)

func newRouter(logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Tracing)
	r.Use(Logger(logger))
	r.Use(Metrics)
	r.Get("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func TestLogger_LogsRouteStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, "production", "debug")

	rr := httptest.NewRecorder()
	newRouter(logger).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/posts/42", nil))

	require.Equal(t, http.StatusTeapot, rr.Code)
	out := buf.String()
	assert.Contains(t, out, `"route":"/posts/{id}"`)
	assert.Contains(t, out, `"path":"/posts/42"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"request_id":`)
	assert.Contains(t, out, `"level":"WARN"`)
}

func TestLogger_ServerErrorAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, "production", "info")

	newRouter(logger).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	logger := observability.NewLogger(&bytes.Buffer{}, "test", "error")
	router := newRouter(logger)

	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/posts/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/posts/1", "/posts/2", "/posts/3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	logger := observability.NewLogger(&bytes.Buffer{}, "test", "error")
	router := newRouter(logger)

	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rw := wrap(httptest.NewRecorder())
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusCreated, rw.statusCode)
}
