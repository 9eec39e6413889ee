// Package main implements a mock retailer adapter for local development.
// It serves normalized snapshot payloads from a JSON fixture so the poller
// can be exercised without scraping a real retailer, and can drift prices
// and flip stock over time to trigger change detection.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// snapshotPayload mirrors the adapter wire format consumed by the poller.
type snapshotPayload struct {
	Price          float64    `json:"price"`
	Currency       string     `json:"currency"`
	InStock        bool       `json:"in_stock"`
	StockQuantity  *int       `json:"stock_quantity,omitempty"`
	Availability   string     `json:"availability,omitempty"`
	AuctionEndTime *time.Time `json:"auction_end_time,omitempty"`
	CurrentBid     *float64   `json:"current_bid,omitempty"`
}

// catalog holds the mutable mock listings keyed by source id.
type catalog struct {
	mu    sync.Mutex
	items map[string]*snapshotPayload
	drift float64
	flip  float64
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/products.json", "path to products fixture")
	drift := flag.Float64("drift", 0.05, "max relative price change applied per request (0 disables)")
	flip := flag.Float64("flip", 0.02, "probability of a stock flip per request")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	items, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "products", len(items))

	cat := &catalog{items: items, drift: *drift, flip: *flip}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", productHandler(logger, cat))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock retailer adapter", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadFixture(path string) (map[string]*snapshotPayload, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var items map[string]*snapshotPayload
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return items, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// productHandler serves one listing. Source ids with special prefixes
// simulate failure modes: "gone-" returns 404, "limited-" returns 429,
// "slow-" sleeps past any sane fetch timeout, and "broken-" returns a
// payload without a currency, which the poller treats as a format change.
func productHandler(logger *slog.Logger, cat *catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		switch {
		case strings.HasPrefix(id, "gone-"):
			http.Error(w, `{"error":"listing not found"}`, http.StatusNotFound)
			return
		case strings.HasPrefix(id, "limited-"):
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			return
		case strings.HasPrefix(id, "slow-"):
			time.Sleep(time.Minute)
			return
		case strings.HasPrefix(id, "broken-"):
			w.Header().Set("Content-Type", "application/json")
			//nolint:errcheck,gosec // best-effort write in mock server
			w.Write([]byte(`{"price":1.0,"in_stock":true}`))
			return
		}

		payload, ok := cat.read(id)
		if !ok {
			http.Error(w, `{"error":"listing not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write in mock server
		json.NewEncoder(w).Encode(payload)
		logger.Info("served snapshot", "source_id", id, "price", payload.Price, "in_stock", payload.InStock)
	}
}

// read returns a copy of the listing after applying the configured price
// drift and stock-flip chance, so repeated polls observe changes.
func (c *catalog) read(id string) (*snapshotPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return nil, false
	}

	if c.drift > 0 && item.Price > 0 {
		factor := 1 + (rand.Float64()*2-1)*c.drift
		item.Price = float64(int(item.Price*factor*100)) / 100
	}
	if c.flip > 0 && rand.Float64() < c.flip {
		item.InStock = !item.InStock
	}

	cp := *item
	return &cp, true
}
