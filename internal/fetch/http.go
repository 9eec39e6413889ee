package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// HTTPFetcher reads normalized product snapshots from a retailer adapter
// endpoint. The adapter (a scraping/parsing service per retailer) answers
// GET <endpoint>/{sourceID} with a snapshotPayload; this client only
// classifies failures and converts the payload into a domain.Snapshot.
type HTTPFetcher struct {
	retailer domain.Retailer
	endpoint string
	client   *http.Client
	limiter  *Limiter
	nowFunc  func() time.Time
}

// HTTPOption configures the HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = hc
	}
}

// WithLimiter injects a rate limiter; every Fetch goes through Wait first.
func WithLimiter(l *Limiter) HTTPOption {
	return func(f *HTTPFetcher) {
		f.limiter = l
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(now func() time.Time) HTTPOption {
	return func(f *HTTPFetcher) {
		f.nowFunc = now
	}
}

// NewHTTPFetcher creates a fetcher for one retailer adapter endpoint.
func NewHTTPFetcher(
	retailer domain.Retailer,
	endpoint string,
	opts ...HTTPOption,
) *HTTPFetcher {
	f := &HTTPFetcher{
		retailer: retailer,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// snapshotPayload is the normalized wire format produced by retailer adapters.
type snapshotPayload struct {
	Price          float64    `json:"price"`
	Currency       string     `json:"currency"`
	InStock        bool       `json:"in_stock"`
	StockQuantity  *int       `json:"stock_quantity"`
	Availability   string     `json:"availability"`
	AuctionEndTime *time.Time `json:"auction_end_time"`
	CurrentBid     *float64   `json:"current_bid"`
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(
	ctx context.Context,
	p *domain.TrackedProduct,
) (*domain.Snapshot, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, f.failure(p, classifyCtxErr(err), err)
		}
	}

	u := f.endpoint + "/" + p.SourceID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, f.failure(p, FailureUnknown, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.failure(p, classifyCtxErr(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, f.failure(p, FailureUnknown, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, f.failure(p, FailureNotFound, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, f.failure(p, FailureRateLimited, nil)
	case resp.StatusCode != http.StatusOK:
		return nil, f.failure(p, FailureUnknown,
			fmt.Errorf("adapter returned %d: %s", resp.StatusCode, body))
	}

	var payload snapshotPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, f.failure(p, FailureFormatChanged, err)
	}
	if payload.Currency == "" {
		// An OK response without a currency means the adapter no longer
		// understands the retailer's page layout.
		return nil, f.failure(p, FailureFormatChanged,
			errors.New("payload missing currency"))
	}

	return &domain.Snapshot{
		Timestamp:      f.nowFunc(),
		Price:          payload.Price,
		Currency:       payload.Currency,
		InStock:        payload.InStock,
		StockQuantity:  payload.StockQuantity,
		Availability:   payload.Availability,
		AuctionEndTime: payload.AuctionEndTime,
		CurrentBid:     payload.CurrentBid,
	}, nil
}

func (f *HTTPFetcher) failure(
	p *domain.TrackedProduct,
	kind FailureKind,
	err error,
) *FetchError {
	return &FetchError{
		Kind:     kind,
		Retailer: f.retailer,
		SourceID: p.SourceID,
		Err:      err,
	}
}

// classifyCtxErr maps transport-level errors onto the failure taxonomy.
// A deadline hit anywhere in the fetch path is a timeout.
func classifyCtxErr(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	return FailureUnknown
}
