package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tlundberg/wishwatch/internal/config"
	"github.com/tlundberg/wishwatch/internal/fetch"
	"github.com/tlundberg/wishwatch/internal/metrics"
	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Publisher receives newly created alerts for delivery. Implementations must
// not block; the engine calls Publish inline from poll cycles.
type Publisher interface {
	Publish(a *domain.Alert)
}

// Engine runs one poll cycle per invocation: fetch a snapshot, detect
// changes against the previous one, record history, deduplicate alerts, and
// persist the updated product state including the next poll time.
type Engine struct {
	store   store.Store
	fetcher fetch.Fetcher
	det     *Detector
	hist    *Historian
	dedup   *Deduplicator
	policy  *PollPolicy
	pub     Publisher
	log     *slog.Logger
	now     func() time.Time
	nowSet  bool

	fetchTimeout time.Duration
	maxFailures  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPublisher sets the alert publisher.
func WithPublisher(pub Publisher) Option {
	return func(e *Engine) {
		e.pub = pub
	}
}

// WithNow overrides the engine clock, for tests. The clock propagates to
// the detector, policy, and deduplicator after all options apply, so the
// order relative to WithDeduplicator does not matter.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.nowSet = true
	}
}

// WithDeduplicator replaces the deduplicator built from config.
func WithDeduplicator(d *Deduplicator) Option {
	return func(e *Engine) {
		e.dedup = d
	}
}

// New creates an engine over the given store and fetcher.
func New(s store.Store, f fetch.Fetcher, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		fetcher:      f,
		det:          NewDetector(cfg.Engine.PriceEpsilon, cfg.Engine.AuctionUrgentThreshold),
		hist:         NewHistorian(cfg.History.RetentionWindow, cfg.History.PointCap, cfg.History.Bucket),
		dedup:        NewDeduplicator(s, cfg.Alerts.DedupCooldown),
		policy:       NewPollPolicy(cfg.Engine),
		log:          slog.Default(),
		now:          time.Now,
		fetchTimeout: cfg.Engine.FetchTimeout,
		maxFailures:  cfg.Engine.MaxConsecutiveFailures,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.nowSet {
		e.det.now = e.now
		e.policy.now = e.now
		e.dedup.now = e.now
	}
	return e
}

// PollCycle runs one full cycle for a product. It returns the updated
// product so the scheduler can read the next poll time, or nil when the
// product is gone or was untracked and the cycle result was discarded.
// Fetch failures are absorbed into backoff state, not returned.
func (e *Engine) PollCycle(ctx context.Context, productID string) (*domain.TrackedProduct, error) {
	start := e.now()
	defer func() {
		metrics.CyclesTotal.Inc()
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading product %s: %w", productID, err)
	}
	if !p.Tracked {
		return nil, nil
	}

	fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	snap, ferr := e.fetcher.Fetch(fctx, p)
	cancel()
	if ferr != nil {
		return e.recordFailure(ctx, p, ferr)
	}

	// The product may have been untracked or deleted while the fetch was in
	// flight; its result must not resurrect state.
	p, err = e.store.GetProduct(ctx, productID)
	if err != nil || !p.Tracked {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("reloading product %s: %w", productID, err)
		}
		metrics.DiscardedResultsTotal.Inc()
		e.log.Debug("discarding fetch result for untracked product", "product_id", productID)
		return nil, nil
	}

	det := e.det.Detect(p.ID, p.LastSnapshot, snap, FlagState{
		EndingSoonFired: p.EndingSoonFired,
		SoldFired:       p.SoldFired,
		AuctionEndSeen:  p.AuctionEndSeen,
	})

	if det.CurrencyMismatch {
		now := e.now()
		p.LastInconsistencyAt = &now
		metrics.DataInconsistenciesTotal.Inc()
		e.log.Warn("currency mismatch between snapshots, price comparison skipped",
			"product_id", p.ID,
			"prev_currency", p.LastSnapshot.Currency,
			"new_currency", snap.Currency,
		)
	}

	e.recordHistory(ctx, p.ID, snap)
	e.raiseAlerts(ctx, det.Events)

	p.LastSnapshot = snap
	p.ConsecutiveFailures = 0
	if p.Degraded {
		p.Degraded = false
		e.log.Info("product recovered from degraded state", "product_id", p.ID)
	}
	p.EndingSoonFired = det.Flags.EndingSoonFired
	p.SoldFired = det.Flags.SoldFired
	p.AuctionEndSeen = det.Flags.AuctionEndSeen
	p.NextPollAt = e.now().Add(e.policy.Next(p, snap))

	if err := e.store.UpdateProductState(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.DiscardedResultsTotal.Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("persisting product %s: %w", productID, err)
	}
	return p, nil
}

func (e *Engine) recordFailure(
	ctx context.Context,
	p *domain.TrackedProduct,
	ferr error,
) (*domain.TrackedProduct, error) {
	kind := fetch.KindOf(ferr)
	metrics.FetchFailuresTotal.WithLabelValues(string(kind)).Inc()

	p.ConsecutiveFailures++
	if kind == fetch.FailureFormatChanged {
		e.log.Error("retailer response format changed",
			"product_id", p.ID,
			"retailer", p.Retailer,
			"error", ferr,
		)
	} else {
		e.log.Warn("fetch failed",
			"product_id", p.ID,
			"kind", kind,
			"failures", p.ConsecutiveFailures,
			"error", ferr,
		)
	}

	if p.ConsecutiveFailures >= e.maxFailures && !p.Degraded {
		p.Degraded = true
		e.log.Error("product marked degraded",
			"product_id", p.ID,
			"failures", p.ConsecutiveFailures,
		)
	}

	p.NextPollAt = e.now().Add(e.policy.Backoff(p.ConsecutiveFailures))

	if err := e.store.UpdateProductState(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("persisting product %s: %w", p.ID, err)
	}
	return p, nil
}

// recordHistory appends the snapshot's price point unless it repeats the
// last one. History trouble is logged, never allowed to kill the cycle.
func (e *Engine) recordHistory(ctx context.Context, productID string, snap *domain.Snapshot) {
	pts, err := e.store.GetHistory(ctx, productID)
	if err != nil {
		e.log.Warn("loading history failed", "product_id", productID, "error", err)
		return
	}

	pt := domain.HistoryPoint{
		Timestamp: snap.Timestamp,
		Price:     snap.Price,
		Currency:  snap.Currency,
	}
	if _, added := e.hist.Append(pts, pt); !added {
		return
	}
	if err := e.store.AppendHistoryPoint(ctx, productID, pt); err != nil {
		e.log.Warn("appending history point failed", "product_id", productID, "error", err)
	}
}

func (e *Engine) raiseAlerts(ctx context.Context, events []domain.ChangeEvent) {
	for _, ev := range events {
		metrics.ChangeEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

		alert, err := e.dedup.Process(ctx, ev)
		if err != nil {
			e.log.Error("alert deduplication failed",
				"product_id", ev.ProductID,
				"kind", ev.Kind,
				"error", err,
			)
			continue
		}
		if alert != nil && e.pub != nil {
			e.pub.Publish(alert)
		}
	}
}

// Forget drops cached per-product state. Called when a product is untracked.
func (e *Engine) Forget(productID string) {
	e.dedup.Forget(productID)
}

// CompactHistory applies the retention policy to one product's history.
func (e *Engine) CompactHistory(ctx context.Context, productID string) error {
	pts, err := e.store.GetHistory(ctx, productID)
	if err != nil {
		return fmt.Errorf("loading history for %s: %w", productID, err)
	}

	compacted := e.hist.Compact(pts, e.now())
	if len(compacted) == len(pts) {
		return nil
	}

	if err := e.store.ReplaceHistory(ctx, productID, compacted); err != nil {
		return fmt.Errorf("replacing history for %s: %w", productID, err)
	}
	metrics.HistoryPointsCompactedTotal.Add(float64(len(pts) - len(compacted)))
	return nil
}

// SyncDegradedGauge refreshes the degraded-products gauge from the store.
func (e *Engine) SyncDegradedGauge(ctx context.Context) error {
	n, err := e.store.CountDegraded(ctx)
	if err != nil {
		return fmt.Errorf("counting degraded products: %w", err)
	}
	metrics.DegradedProducts.Set(float64(n))
	return nil
}
