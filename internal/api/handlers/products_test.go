package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlundberg/wishwatch/internal/api/handlers"
	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// fakeTracker records scheduler registrations.
type fakeTracker struct {
	tracked   []string
	untracked []string
}

func (f *fakeTracker) Track(id string, _ time.Time) { f.tracked = append(f.tracked, id) }
func (f *fakeTracker) Untrack(id string)            { f.untracked = append(f.untracked, id) }

func seedStoreProduct(t *testing.T, ms *store.Memory) *domain.TrackedProduct {
	t.Helper()

	p := &domain.TrackedProduct{
		Retailer: domain.RetailerEbay,
		SourceID: "item-1",
		Title:    "Mechanical keyboard",
		Tracked:  true,
	}
	require.NoError(t, ms.CreateProduct(context.Background(), p))
	return p
}

func doRequest(
	h echo.HandlerFunc,
	method, target, body string,
	pathParams map[string]string,
) *httptest.ResponseRecorder {
	e := echo.New()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	c := e.NewContext(req, rec)
	for k, v := range pathParams {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestProductHandler_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid",
			body:       `{"retailer":"ebay","source_id":"1234","title":"Lens","url":"https://www.ebay.com/itm/1234"}`,
			wantStatus: http.StatusCreated,
			wantBody:   `"Lens"`,
		},
		{
			name:       "with poll interval",
			body:       `{"retailer":"amazon","source_id":"B000X","poll_interval":"30m"}`,
			wantStatus: http.StatusCreated,
			wantBody:   `"B000X"`,
		},
		{
			name:       "missing source_id",
			body:       `{"retailer":"ebay"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `required`,
		},
		{
			name:       "bad poll interval",
			body:       `{"retailer":"ebay","source_id":"1","poll_interval":"soonish"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `poll_interval`,
		},
		{
			name:       "negative poll interval",
			body:       `{"retailer":"ebay","source_id":"1","poll_interval":"-5m"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `poll_interval`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := store.NewMemory()
			tracker := &fakeTracker{}
			h := handlers.NewProductHandler(ms, tracker)

			rec := doRequest(h.Create, http.MethodPost, "/api/v1/products", tt.body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)

			if tt.wantStatus == http.StatusCreated {
				// The new product is handed to the scheduler.
				assert.Len(t, tracker.tracked, 1)
			} else {
				assert.Empty(t, tracker.tracked)
			}
		})
	}
}

func TestProductHandler_List(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	h := handlers.NewProductHandler(ms, &fakeTracker{})

	t.Run("empty store returns empty array", func(t *testing.T) {
		rec := doRequest(h.List, http.MethodGet, "/api/v1/products", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("tracked filter", func(t *testing.T) {
		seedStoreProduct(t, ms)
		untracked := &domain.TrackedProduct{Retailer: domain.RetailerEbay, SourceID: "item-2"}
		require.NoError(t, ms.CreateProduct(context.Background(), untracked))

		rec := doRequest(h.List, http.MethodGet, "/api/v1/products?tracked=true", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var got []domain.TrackedProduct
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "item-1", got[0].SourceID)
	})
}

func TestProductHandler_Get(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	p := seedStoreProduct(t, ms)
	h := handlers.NewProductHandler(ms, &fakeTracker{})

	t.Run("found", func(t *testing.T) {
		rec := doRequest(h.Get, http.MethodGet, "/", "", map[string]string{"id": p.ID})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Mechanical keyboard")
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(h.Get, http.MethodGet, "/", "", map[string]string{"id": "nope"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestProductHandler_Delete(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	p := seedStoreProduct(t, ms)
	tracker := &fakeTracker{}
	h := handlers.NewProductHandler(ms, tracker)

	rec := doRequest(h.Delete, http.MethodDelete, "/", "", map[string]string{"id": p.ID})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{p.ID}, tracker.untracked)

	_, err := ms.GetProduct(context.Background(), p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec = doRequest(h.Delete, http.MethodDelete, "/", "", map[string]string{"id": p.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductHandler_History(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	p := seedStoreProduct(t, ms)
	h := handlers.NewProductHandler(ms, &fakeTracker{})

	t.Run("unknown product", func(t *testing.T) {
		rec := doRequest(h.History, http.MethodGet, "/", "", map[string]string{"id": "nope"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no points yet returns empty array", func(t *testing.T) {
		rec := doRequest(h.History, http.MethodGet, "/", "", map[string]string{"id": p.ID})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("ordered points", func(t *testing.T) {
		base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		for i, price := range []float64{30, 25} {
			require.NoError(t, ms.AppendHistoryPoint(context.Background(), p.ID, domain.HistoryPoint{
				Timestamp: base.Add(time.Duration(i) * time.Hour),
				Price:     price,
				Currency:  "USD",
			}))
		}

		rec := doRequest(h.History, http.MethodGet, "/", "", map[string]string{"id": p.ID})
		assert.Equal(t, http.StatusOK, rec.Code)

		var got []domain.HistoryPoint
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.InDelta(t, 30, got[0].Price, 1e-9)
		assert.InDelta(t, 25, got[1].Price, 1e-9)
	})
}
