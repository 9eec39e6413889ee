// Package engine implements the polling core: snapshot fetching, change
// detection, history recording, alert deduplication, and scheduling.
package engine

import (
	"time"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// FlagState is the one-shot auction alert state carried between cycles for a
// product. AuctionEndSeen is the end time the flags were set against.
type FlagState struct {
	EndingSoonFired bool
	SoldFired       bool
	AuctionEndSeen  *time.Time
}

// Detection is the outcome of comparing two consecutive snapshots.
type Detection struct {
	// Events in emission order: stock transitions, then price transitions,
	// then auction timing.
	Events []domain.ChangeEvent

	// Flags is the updated one-shot state to persist on the product.
	Flags FlagState

	// CurrencyMismatch reports that the snapshots carry different currencies
	// and price comparison was skipped.
	CurrencyMismatch bool
}

// Detector classifies transitions between consecutive snapshots of the same
// product. It holds no per-product state; flag state is passed in and
// returned so callers own persistence.
type Detector struct {
	epsilon   float64
	urgentWin time.Duration
	now       func() time.Time
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorNow overrides the clock, for tests.
func WithDetectorNow(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector creates a detector. epsilon is the minimum price delta treated
// as a real change; urgentWindow is the remaining-time threshold for
// ending-soon events.
func NewDetector(epsilon float64, urgentWindow time.Duration, opts ...DetectorOption) *Detector {
	d := &Detector{
		epsilon:   epsilon,
		urgentWin: urgentWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect compares the previous snapshot against the current one and returns
// the typed change events plus the updated one-shot flag state. A nil prev
// (first successful poll) yields no events.
func (d *Detector) Detect(
	productID string,
	prev, curr *domain.Snapshot,
	flags FlagState,
) Detection {
	// A changed auction end time means the listing was relisted or extended;
	// the one-shot flags apply to the new lifecycle.
	if !timePtrEqual(flags.AuctionEndSeen, curr.AuctionEndTime) {
		flags.EndingSoonFired = false
		flags.SoldFired = false
		flags.AuctionEndSeen = copyTimePtr(curr.AuctionEndTime)
	}

	det := Detection{Flags: flags}
	if prev == nil {
		// First observation. An auction already ended or already inside the
		// urgent window was never seen pending here, so the one-shot events
		// must not fire on the next poll; seed the flags as if they had.
		if curr.IsAuction() {
			remaining := curr.AuctionEndTime.Sub(d.now())
			if remaining <= 0 {
				det.Flags.SoldFired = true
			} else if remaining <= d.urgentWin {
				det.Flags.EndingSoonFired = true
			}
		}
		return det
	}

	event := func(kind domain.ChangeKind) domain.ChangeEvent {
		return domain.ChangeEvent{
			ProductID:      productID,
			Kind:           kind,
			Currency:       curr.Currency,
			AuctionEndTime: copyTimePtr(curr.AuctionEndTime),
			CurrentBid:     copyFloatPtr(curr.CurrentBid),
			Timestamp:      curr.Timestamp,
		}
	}

	// Stock transitions. Sold-out is reserved for fixed-price listings;
	// auctions end via item_sold below.
	if !prev.InStock && curr.InStock {
		det.Events = append(det.Events, event(domain.KindBackInStock))
	}
	if prev.InStock && !curr.InStock && !curr.IsAuction() {
		det.Events = append(det.Events, event(domain.KindSoldOut))
	}

	// Price transitions. Comparing across currencies is meaningless, so a
	// mismatch is surfaced as a data inconsistency instead of an event.
	if prev.Currency != curr.Currency {
		det.CurrencyMismatch = true
	} else {
		diff := prev.Price - curr.Price
		switch {
		case diff > d.epsilon:
			ev := event(domain.KindPriceDropped)
			ev.PrevPrice = prev.Price
			ev.NewPrice = curr.Price
			det.Events = append(det.Events, ev)
		case -diff > d.epsilon:
			ev := event(domain.KindPriceIncreased)
			ev.PrevPrice = prev.Price
			ev.NewPrice = curr.Price
			det.Events = append(det.Events, ev)
		}
	}

	// Auction timing. Each fires at most once per auction lifecycle.
	if curr.IsAuction() {
		remaining := curr.AuctionEndTime.Sub(d.now())
		if remaining > 0 && remaining <= d.urgentWin && !det.Flags.EndingSoonFired {
			det.Flags.EndingSoonFired = true
			det.Events = append(det.Events, event(domain.KindEndingSoon))
		}
		if remaining <= 0 && !det.Flags.SoldFired {
			det.Flags.SoldFired = true
			det.Events = append(det.Events, event(domain.KindItemSold))
		}
	}

	return det
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func copyFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}
