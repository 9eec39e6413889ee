package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func loadTestFixture(t *testing.T) map[string]*snapshotPayload {
	t.Helper()
	items, err := loadFixture(filepath.Join("testdata", "products.json"))
	if err != nil {
		t.Fatalf("loading fixture: %v", err)
	}
	return items
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func serve(t *testing.T, cat *catalog, id string) *httptest.ResponseRecorder {
	t.Helper()
	handler := productHandler(testLogger(), cat)
	req := httptest.NewRequest(http.MethodGet, "/products/"+id, http.NoBody)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestLoadFixture(t *testing.T) {
	items := loadTestFixture(t)
	if len(items) == 0 {
		t.Fatal("expected products in fixture")
	}
	for id, item := range items {
		if item.Currency == "" {
			t.Errorf("product %s: expected a currency", id)
		}
	}
}

func TestProductHandler_KnownProduct(t *testing.T) {
	items := loadTestFixture(t)
	cat := &catalog{items: items}

	var id string
	for k := range items {
		id = k
		break
	}

	w := serve(t, cat, id)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusOK)
	}

	var payload snapshotPayload
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Currency == "" {
		t.Error("expected non-empty currency")
	}
	if payload.Price != items[id].Price {
		t.Errorf("price=%v, want %v (drift disabled)", payload.Price, items[id].Price)
	}
}

func TestProductHandler_UnknownProduct(t *testing.T) {
	cat := &catalog{items: map[string]*snapshotPayload{}}

	w := serve(t, cat, "no-such-listing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestProductHandler_FailurePrefixes(t *testing.T) {
	cat := &catalog{items: map[string]*snapshotPayload{}}

	tests := []struct {
		id   string
		want int
	}{
		{"gone-123", http.StatusNotFound},
		{"limited-123", http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		w := serve(t, cat, tt.id)
		if w.Code != tt.want {
			t.Errorf("%s: status=%d, want %d", tt.id, w.Code, tt.want)
		}
	}
}

func TestProductHandler_BrokenPayloadOmitsCurrency(t *testing.T) {
	cat := &catalog{items: map[string]*snapshotPayload{}}

	w := serve(t, cat, "broken-123")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := payload["currency"]; ok {
		t.Error("broken payload should omit currency")
	}
}

func TestCatalogRead_DriftChangesPrice(t *testing.T) {
	cat := &catalog{
		items: map[string]*snapshotPayload{
			"item-1": {Price: 100, Currency: "USD", InStock: true},
		},
		drift: 0.5,
	}

	// With 50% drift the price is overwhelmingly unlikely to stay exactly
	// at 100.00 over many reads.
	changed := false
	for range 50 {
		p, ok := cat.read("item-1")
		if !ok {
			t.Fatal("expected item")
		}
		if p.Price != 100 {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("expected drift to move the price")
	}
}
