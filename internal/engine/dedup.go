package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tlundberg/wishwatch/internal/metrics"
	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Deduplicator decides, per change event, whether to create a fresh alert,
// fold the change into a pending unread alert, or suppress it entirely.
// Decisions for the same product are serialized; state survives restarts by
// rehydrating from the latest persisted alert per (product, kind).
type Deduplicator struct {
	store    store.Store
	cooldown time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	products map[string]*productDedup
}

type productDedup struct {
	mu   sync.Mutex
	last map[domain.ChangeKind]*dedupEntry
}

type dedupEntry struct {
	alertID        string
	createdAt      time.Time
	auctionEndTime *time.Time
}

// DedupOption configures a Deduplicator.
type DedupOption func(*Deduplicator)

// WithDedupLogger sets the logger.
func WithDedupLogger(log *slog.Logger) DedupOption {
	return func(d *Deduplicator) {
		d.log = log
	}
}

// WithDedupNow overrides the clock, for tests.
func WithDedupNow(now func() time.Time) DedupOption {
	return func(d *Deduplicator) {
		d.now = now
	}
}

// NewDeduplicator creates a deduplicator backed by s with the given
// cool-down window.
func NewDeduplicator(s store.Store, cooldown time.Duration, opts ...DedupOption) *Deduplicator {
	d := &Deduplicator{
		store:    s,
		cooldown: cooldown,
		log:      slog.Default(),
		now:      time.Now,
		products: make(map[string]*productDedup),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process runs one change event through deduplication. It returns the newly
// created alert when one was raised, or nil when the event was suppressed or
// coalesced into an existing alert.
func (d *Deduplicator) Process(
	ctx context.Context,
	ev domain.ChangeEvent,
) (*domain.Alert, error) {
	pd := d.productState(ev.ProductID)
	pd.mu.Lock()
	defer pd.mu.Unlock()

	entry, err := d.lastEntry(ctx, pd, ev.ProductID, ev.Kind)
	if err != nil {
		return nil, err
	}

	if isOneShot(ev.Kind) {
		// One alert per auction lifecycle. A different end time means a
		// relist, which starts a new lifecycle.
		if entry != nil && timePtrEqual(entry.auctionEndTime, ev.AuctionEndTime) {
			metrics.AlertsSuppressedTotal.Inc()
			return nil, nil
		}
		return d.create(ctx, pd, ev)
	}

	if entry == nil || d.now().Sub(entry.createdAt) >= d.cooldown {
		return d.create(ctx, pd, ev)
	}

	if isPriceKind(ev.Kind) {
		return d.coalesceOrCreate(ctx, pd, ev, entry)
	}

	metrics.AlertsSuppressedTotal.Inc()
	return nil, nil
}

// coalesceOrCreate folds a price event into the pending alert when it is
// still unread, otherwise raises a fresh alert so the user is not left
// staring at a stale price on an alert they already acknowledged.
func (d *Deduplicator) coalesceOrCreate(
	ctx context.Context,
	pd *productDedup,
	ev domain.ChangeEvent,
	entry *dedupEntry,
) (*domain.Alert, error) {
	prior, err := d.store.GetAlert(ctx, entry.alertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d.create(ctx, pd, ev)
		}
		return nil, fmt.Errorf("loading alert %s: %w", entry.alertID, err)
	}

	if prior.IsRead {
		return d.create(ctx, pd, ev)
	}

	err = d.store.CoalesceAlert(
		ctx,
		prior.ID,
		prior.PrevPrice,
		ev.NewPrice,
		FormatMessage(ev.Kind, prior.PrevPrice, ev.NewPrice, ev.Currency, ev.AuctionEndTime),
		ev.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("coalescing alert %s: %w", prior.ID, err)
	}

	entry.createdAt = ev.Timestamp
	metrics.AlertsCoalescedTotal.Inc()
	d.log.Debug("alert coalesced",
		"product_id", ev.ProductID,
		"kind", ev.Kind,
		"alert_id", prior.ID,
	)
	return nil, nil
}

func (d *Deduplicator) create(
	ctx context.Context,
	pd *productDedup,
	ev domain.ChangeEvent,
) (*domain.Alert, error) {
	alert := NewAlert(ev)
	if err := d.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	pd.last[ev.Kind] = &dedupEntry{
		alertID:        alert.ID,
		createdAt:      alert.CreatedAt,
		auctionEndTime: copyTimePtr(alert.AuctionEndTime),
	}
	metrics.AlertsCreatedTotal.WithLabelValues(string(ev.Kind)).Inc()
	d.log.Info("alert created",
		"product_id", ev.ProductID,
		"kind", ev.Kind,
		"alert_id", alert.ID,
	)
	return alert, nil
}

// lastEntry returns the cached dedup state for a (product, kind) key,
// falling back to the most recent persisted alert after a restart.
func (d *Deduplicator) lastEntry(
	ctx context.Context,
	pd *productDedup,
	productID string,
	kind domain.ChangeKind,
) (*dedupEntry, error) {
	if entry, ok := pd.last[kind]; ok {
		return entry, nil
	}

	alert, err := d.store.LatestAlert(ctx, productID, kind)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rehydrating dedup state: %w", err)
	}

	entry := &dedupEntry{
		alertID:        alert.ID,
		createdAt:      alert.CreatedAt,
		auctionEndTime: copyTimePtr(alert.AuctionEndTime),
	}
	pd.last[kind] = entry
	return entry, nil
}

func (d *Deduplicator) productState(productID string) *productDedup {
	d.mu.Lock()
	defer d.mu.Unlock()

	pd, ok := d.products[productID]
	if !ok {
		pd = &productDedup{last: make(map[domain.ChangeKind]*dedupEntry)}
		d.products[productID] = pd
	}
	return pd
}

// Forget drops the cached dedup state for a product. Called on untrack so a
// re-added product starts clean.
func (d *Deduplicator) Forget(productID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.products, productID)
}

// NewAlert builds an alert from a change event. The template name is the
// change kind; sinks with their own presentation layer key off it.
func NewAlert(ev domain.ChangeEvent) *domain.Alert {
	return &domain.Alert{
		ProductID:      ev.ProductID,
		Kind:           ev.Kind,
		Template:       string(ev.Kind),
		Message:        FormatMessage(ev.Kind, ev.PrevPrice, ev.NewPrice, ev.Currency, ev.AuctionEndTime),
		PrevPrice:      ev.PrevPrice,
		NewPrice:       ev.NewPrice,
		Currency:       ev.Currency,
		AuctionEndTime: copyTimePtr(ev.AuctionEndTime),
		CurrentBid:     copyFloatPtr(ev.CurrentBid),
		CreatedAt:      ev.Timestamp,
	}
}

// FormatMessage renders the default human-readable alert message.
func FormatMessage(
	kind domain.ChangeKind,
	prevPrice, newPrice float64,
	currency string,
	auctionEnd *time.Time,
) string {
	switch kind {
	case domain.KindPriceDropped:
		return fmt.Sprintf("Price dropped from %.2f to %.2f %s", prevPrice, newPrice, currency)
	case domain.KindPriceIncreased:
		return fmt.Sprintf("Price increased from %.2f to %.2f %s", prevPrice, newPrice, currency)
	case domain.KindBackInStock:
		return "Back in stock"
	case domain.KindSoldOut:
		return "Sold out"
	case domain.KindEndingSoon:
		if auctionEnd != nil {
			return fmt.Sprintf("Auction ending soon, closes %s", auctionEnd.UTC().Format(time.RFC3339))
		}
		return "Auction ending soon"
	case domain.KindItemSold:
		return "Auction ended"
	default:
		return string(kind)
	}
}

func isOneShot(kind domain.ChangeKind) bool {
	return kind == domain.KindEndingSoon || kind == domain.KindItemSold
}

func isPriceKind(kind domain.ChangeKind) bool {
	return kind == domain.KindPriceDropped || kind == domain.KindPriceIncreased
}
