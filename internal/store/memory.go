package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Memory is an in-memory Store used by engine and handler tests. It mirrors
// the Postgres store's semantics, including leaving alerts behind when a
// product is deleted.
type Memory struct {
	mu       sync.RWMutex
	products map[string]*domain.TrackedProduct
	history  map[string][]domain.HistoryPoint
	alerts   map[string]*domain.Alert
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]*domain.TrackedProduct),
		history:  make(map[string][]domain.HistoryPoint),
		alerts:   make(map[string]*domain.Alert),
	}
}

// CreateProduct inserts a product, assigning an id if absent.
func (m *Memory) CreateProduct(_ context.Context, p *domain.TrackedProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.NextPollAt.IsZero() {
		p.NextPollAt = now
	}

	cp := *p
	m.products[p.ID] = &cp
	return nil
}

// GetProduct retrieves a product by id.
func (m *Memory) GetProduct(_ context.Context, id string) (*domain.TrackedProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProducts returns all products, optionally only tracked ones.
func (m *Memory) ListProducts(
	_ context.Context,
	trackedOnly bool,
) ([]domain.TrackedProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.TrackedProduct
	for _, p := range m.products {
		if trackedOnly && !p.Tracked {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateProductState persists the mutable product fields.
func (m *Memory) UpdateProductState(_ context.Context, p *domain.TrackedProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}

	cp := *p
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	m.products[p.ID] = &cp
	return nil
}

// DeleteProduct removes a product and its history; alerts stay behind.
func (m *Memory) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	delete(m.history, id)
	return nil
}

// CountDegraded returns the number of tracked products in degraded state.
func (m *Memory) CountDegraded(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, p := range m.products {
		if p.Tracked && p.Degraded {
			n++
		}
	}
	return n, nil
}

// GetHistory returns a copy of the product's ordered history.
func (m *Memory) GetHistory(
	_ context.Context,
	productID string,
) ([]domain.HistoryPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pts := m.history[productID]
	out := make([]domain.HistoryPoint, len(pts))
	copy(out, pts)
	return out, nil
}

// AppendHistoryPoint appends a history point.
func (m *Memory) AppendHistoryPoint(
	_ context.Context,
	productID string,
	pt domain.HistoryPoint,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history[productID] = append(m.history[productID], pt)
	return nil
}

// ReplaceHistory swaps the product's full history.
func (m *Memory) ReplaceHistory(
	_ context.Context,
	productID string,
	pts []domain.HistoryPoint,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]domain.HistoryPoint, len(pts))
	copy(cp, pts)
	m.history[productID] = cp
	return nil
}

// CreateAlert inserts an alert, assigning an id if absent.
func (m *Memory) CreateAlert(_ context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

// GetAlert retrieves an alert by id.
func (m *Memory) GetAlert(_ context.Context, id string) (*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAlerts returns alerts newest-first.
func (m *Memory) ListAlerts(
	_ context.Context,
	unreadOnly bool,
	limit int,
) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Alert
	for _, a := range m.alerts {
		if unreadOnly && a.IsRead {
			continue
		}
		out = append(out, *a)
	}
	sortAlertsNewestFirst(out)
	return capAlerts(out, limit), nil
}

// ListAlertsByProduct returns a product's alerts newest-first.
func (m *Memory) ListAlertsByProduct(
	_ context.Context,
	productID string,
	limit int,
) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Alert
	for _, a := range m.alerts {
		if a.ProductID == productID {
			out = append(out, *a)
		}
	}
	sortAlertsNewestFirst(out)
	return capAlerts(out, limit), nil
}

// LatestAlert returns the most recent alert for a (product, kind) key.
func (m *Memory) LatestAlert(
	_ context.Context,
	productID string,
	kind domain.ChangeKind,
) (*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *domain.Alert
	for _, a := range m.alerts {
		if a.ProductID != productID || a.Kind != kind {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// CoalesceAlert updates a pending alert's value and timestamp in place.
func (m *Memory) CoalesceAlert(
	_ context.Context,
	id string,
	prevPrice, newPrice float64,
	message string,
	at time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.PrevPrice = prevPrice
	a.NewPrice = newPrice
	a.Message = message
	a.CreatedAt = at
	return nil
}

// MarkAlertRead marks an alert read. Idempotent.
func (m *Memory) MarkAlertRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil
	}
	if !a.IsRead {
		now := time.Now()
		a.IsRead = true
		a.ReadAt = &now
	}
	return nil
}

// DeleteAlert removes an alert.
func (m *Memory) DeleteAlert(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(m.alerts, id)
	return nil
}

// PruneAlerts removes the oldest alerts beyond keep.
func (m *Memory) PruneAlerts(_ context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		all = append(all, *a)
	}
	sortAlertsNewestFirst(all)

	removed := 0
	for i := keep; i < len(all); i++ {
		delete(m.alerts, all[i].ID)
		removed++
	}
	return removed, nil
}

// Migrate is a no-op for the in-memory store.
func (m *Memory) Migrate(context.Context) error { return nil }

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

func sortAlertsNewestFirst(alerts []domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
}

func capAlerts(alerts []domain.Alert, limit int) []domain.Alert {
	if limit > 0 && len(alerts) > limit {
		return alerts[:limit]
	}
	return alerts
}
