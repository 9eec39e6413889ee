// Package fetch defines the snapshot fetcher contract: how tracked products
// are read from their source retailers and normalized into domain snapshots.
// Retailer-specific fetchers live behind the Fetcher interface so the
// detection core stays retailer-agnostic.
package fetch

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// FailureKind classifies a fetch failure. The engine treats every kind
// identically for backoff; format_changed is logged distinctly for operator
// visibility.
type FailureKind string

// Failure kind constants.
const (
	FailureNotFound      FailureKind = "not_found"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureTimeout       FailureKind = "timeout"
	FailureFormatChanged FailureKind = "format_changed"
	FailureUnknown       FailureKind = "unknown"
)

// FetchError is a typed fetch failure.
type FetchError struct {
	Kind     FailureKind
	Retailer domain.Retailer
	SourceID string
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s/%s: %s: %v", e.Retailer, e.SourceID, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s/%s: %s", e.Retailer, e.SourceID, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from an error, defaulting to unknown.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FailureUnknown
}

// Fetcher returns a normalized snapshot for a tracked product, or a
// *FetchError describing the typed failure.
type Fetcher interface {
	Fetch(ctx context.Context, p *domain.TrackedProduct) (*domain.Snapshot, error)
}

// ErrNoFetcher is returned when no fetcher is registered for a retailer.
var ErrNoFetcher = errors.New("no fetcher registered for retailer")

// Registry selects the fetcher strategy for a product by its retailer field.
type Registry struct {
	fetchers map[domain.Retailer]Fetcher
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[domain.Retailer]Fetcher)}
}

// Register binds a fetcher to a retailer, replacing any previous binding.
func (r *Registry) Register(ret domain.Retailer, f Fetcher) {
	r.fetchers[ret] = f
}

// ForProduct returns the fetcher for the product's retailer.
func (r *Registry) ForProduct(p *domain.TrackedProduct) (Fetcher, error) {
	f, ok := r.fetchers[p.Retailer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFetcher, p.Retailer)
	}
	return f, nil
}

// Fetch implements Fetcher by dispatching on the product's retailer, so the
// registry itself can be handed to the engine.
func (r *Registry) Fetch(
	ctx context.Context,
	p *domain.TrackedProduct,
) (*domain.Snapshot, error) {
	f, err := r.ForProduct(p)
	if err != nil {
		return nil, &FetchError{
			Kind:     FailureUnknown,
			Retailer: p.Retailer,
			SourceID: p.SourceID,
			Err:      err,
		}
	}
	return f.Fetch(ctx, p)
}
