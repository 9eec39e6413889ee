package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlundberg/wishwatch/internal/api/middleware"
)

func serveWith(mw echo.MiddlewareFunc, h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := mw(h)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestLog_LogsAPIRequests(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := serveWith(middleware.RequestLog(log), okHandler, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	out := buf.String()
	assert.Contains(t, out, `"path":"/api/v1/products"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"request_id"`)
}

func TestRequestLog_PropagatesCallerRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("X-Request-ID", "caller-1")
	rec := serveWith(middleware.RequestLog(log), okHandler, req)

	assert.Equal(t, "caller-1", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"request_id":"caller-1"`)
}

func TestRequestLog_ProbeEndpointsQuietAtInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := serveWith(middleware.RequestLog(log), okHandler, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// Probe hits log at debug, so nothing reaches an info-level handler.
	assert.Empty(t, buf.String())
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := serveWith(middleware.Recovery(log), func(echo.Context) error {
		panic("store exploded")
	}, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")

	out := buf.String()
	assert.Contains(t, out, "panic recovered")
	assert.Contains(t, out, "store exploded")
}
