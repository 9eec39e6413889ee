// Package store defines the datastore abstraction for wishwatch. All engine
// logic depends on the Store interface, never on concrete implementations;
// the Postgres store backs production and the Memory store backs tests.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines all data access operations for wishwatch.
//
// Per-product state (last snapshot, one-shot flags, failure counters,
// next-eligible-poll time) round-trips losslessly so the engine survives
// process restarts.
type Store interface {
	// Products
	CreateProduct(ctx context.Context, p *domain.TrackedProduct) error
	GetProduct(ctx context.Context, id string) (*domain.TrackedProduct, error)
	ListProducts(ctx context.Context, trackedOnly bool) ([]domain.TrackedProduct, error)
	// UpdateProductState persists the engine-owned mutable fields: snapshot,
	// failure counters, degraded flag, one-shot flags, next poll time.
	UpdateProductState(ctx context.Context, p *domain.TrackedProduct) error
	// DeleteProduct untracks a product, removing it and its history.
	// Alerts referencing the product are intentionally left behind.
	DeleteProduct(ctx context.Context, id string) error
	CountDegraded(ctx context.Context) (int, error)

	// History
	GetHistory(ctx context.Context, productID string) ([]domain.HistoryPoint, error)
	AppendHistoryPoint(ctx context.Context, productID string, pt domain.HistoryPoint) error
	// ReplaceHistory swaps a product's full history for the compacted sequence.
	ReplaceHistory(ctx context.Context, productID string, pts []domain.HistoryPoint) error

	// Alerts
	CreateAlert(ctx context.Context, a *domain.Alert) error
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)
	ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]domain.Alert, error)
	ListAlertsByProduct(ctx context.Context, productID string, limit int) ([]domain.Alert, error)
	// LatestAlert returns the most recent alert for a dedup key, or ErrNotFound.
	LatestAlert(ctx context.Context, productID string, kind domain.ChangeKind) (*domain.Alert, error)
	// CoalesceAlert updates a pending alert's value and timestamp in place.
	CoalesceAlert(ctx context.Context, id string, prevPrice, newPrice float64, message string, at time.Time) error
	MarkAlertRead(ctx context.Context, id string) error
	DeleteAlert(ctx context.Context, id string) error
	// PruneAlerts deletes the oldest alerts beyond keep, returning the count removed.
	PruneAlerts(ctx context.Context, keep int) (int, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
