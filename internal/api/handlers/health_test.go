package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tlundberg/wishwatch/internal/api/handlers"
	"github.com/tlundberg/wishwatch/internal/store"
)

// unreachableStore fails readiness pings.
type unreachableStore struct {
	*store.Memory
}

func (*unreachableStore) Ping(context.Context) error {
	return assert.AnError
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := handlers.NewHealthHandler(store.NewMemory())
	rec := doRequest(h.Healthz, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		h := handlers.NewHealthHandler(store.NewMemory())
		rec := doRequest(h.Readyz, http.MethodGet, "/readyz", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ready"`)
	})

	t.Run("database down", func(t *testing.T) {
		h := handlers.NewHealthHandler(&unreachableStore{Memory: store.NewMemory()})
		rec := doRequest(h.Readyz, http.MethodGet, "/readyz", "", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unavailable"`)
	})
}
