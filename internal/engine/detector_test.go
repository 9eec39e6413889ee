package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

var detectorNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector() *Detector {
	return NewDetector(0.01, time.Hour, WithDetectorNow(func() time.Time {
		return detectorNow
	}))
}

func snap(price float64, inStock bool) *domain.Snapshot {
	return &domain.Snapshot{
		Timestamp: detectorNow,
		Price:     price,
		Currency:  "USD",
		InStock:   inStock,
	}
}

func auctionSnap(price float64, end time.Time) *domain.Snapshot {
	s := snap(price, true)
	s.AuctionEndTime = &end
	bid := price
	s.CurrentBid = &bid
	return s
}

func kinds(events []domain.ChangeEvent) []domain.ChangeKind {
	out := make([]domain.ChangeKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestDetect_FirstPoll_NoEvents(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	det := d.Detect("p1", nil, snap(10, true), FlagState{})

	assert.Empty(t, det.Events)
	assert.False(t, det.CurrencyMismatch)
}

func TestDetect_PriceDrop(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	det := d.Detect("p1", snap(99.99, true), snap(79.99, true), FlagState{})

	require.Len(t, det.Events, 1)
	ev := det.Events[0]
	assert.Equal(t, domain.KindPriceDropped, ev.Kind)
	assert.InDelta(t, 99.99, ev.PrevPrice, 1e-9)
	assert.InDelta(t, 79.99, ev.NewPrice, 1e-9)
	assert.Equal(t, "USD", ev.Currency)
}

func TestDetect_PriceIncrease(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	det := d.Detect("p1", snap(50, true), snap(60, true), FlagState{})

	require.Len(t, det.Events, 1)
	assert.Equal(t, domain.KindPriceIncreased, det.Events[0].Kind)
}

func TestDetect_PriceWithinEpsilon_NoEvent(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	det := d.Detect("p1", snap(10.00, true), snap(10.009, true), FlagState{})

	assert.Empty(t, det.Events)
}

func TestDetect_CurrencyMismatch(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	prev := snap(100, true)
	curr := snap(50, false)
	curr.Currency = "EUR"

	det := d.Detect("p1", prev, curr, FlagState{})

	assert.True(t, det.CurrencyMismatch)
	// Price comparison skipped, but the stock transition still counts.
	require.Len(t, det.Events, 1)
	assert.Equal(t, domain.KindSoldOut, det.Events[0].Kind)
}

func TestDetect_BackInStock(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	det := d.Detect("p1", snap(10, false), snap(10, true), FlagState{})

	require.Len(t, det.Events, 1)
	assert.Equal(t, domain.KindBackInStock, det.Events[0].Kind)
}

func TestDetect_SoldOut_AuctionExcluded(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(2 * time.Hour)
	prev := auctionSnap(10, end)
	curr := auctionSnap(10, end)
	curr.InStock = false

	det := d.Detect("p1", prev, curr, FlagState{AuctionEndSeen: &end})

	// Auctions end via item_sold, never sold_out.
	assert.Empty(t, det.Events)
}

func TestDetect_EventOrdering(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(30 * time.Minute)
	prev := auctionSnap(100, end)
	prev.InStock = false
	curr := auctionSnap(80, end)

	det := d.Detect("p1", prev, curr, FlagState{AuctionEndSeen: &end})

	assert.Equal(t, []domain.ChangeKind{
		domain.KindBackInStock,
		domain.KindPriceDropped,
		domain.KindEndingSoon,
	}, kinds(det.Events))
}

func TestDetect_EndingSoon_OncePerLifecycle(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(30 * time.Minute)
	prev := auctionSnap(10, end)
	curr := auctionSnap(10, end)

	det := d.Detect("p1", prev, curr, FlagState{AuctionEndSeen: &end})
	require.Equal(t, []domain.ChangeKind{domain.KindEndingSoon}, kinds(det.Events))
	assert.True(t, det.Flags.EndingSoonFired)

	// Second poll inside the window must not fire again.
	det = d.Detect("p1", curr, curr, det.Flags)
	assert.Empty(t, det.Events)
}

func TestDetect_EndingSoon_OutsideWindow_NoEvent(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(3 * time.Hour)
	prev := auctionSnap(10, end)
	curr := auctionSnap(10, end)

	det := d.Detect("p1", prev, curr, FlagState{AuctionEndSeen: &end})

	assert.Empty(t, det.Events)
	assert.False(t, det.Flags.EndingSoonFired)
}

func TestDetect_ItemSold_OncePerLifecycle(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(-5 * time.Minute)
	prev := auctionSnap(10, end)
	curr := auctionSnap(10, end)

	det := d.Detect("p1", prev, curr, FlagState{AuctionEndSeen: &end})
	require.Equal(t, []domain.ChangeKind{domain.KindItemSold}, kinds(det.Events))
	assert.True(t, det.Flags.SoldFired)

	det = d.Detect("p1", curr, curr, det.Flags)
	assert.Empty(t, det.Events)
}

func TestDetect_Relist_ResetsFlags(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	oldEnd := detectorNow.Add(-time.Hour)
	newEnd := detectorNow.Add(30 * time.Minute)
	prev := auctionSnap(10, oldEnd)
	curr := auctionSnap(10, newEnd)

	flags := FlagState{
		EndingSoonFired: true,
		SoldFired:       true,
		AuctionEndSeen:  &oldEnd,
	}

	det := d.Detect("p1", prev, curr, flags)

	// The new lifecycle is inside the urgent window, so ending_soon fires
	// again despite both flags having been set for the old end time.
	require.Equal(t, []domain.ChangeKind{domain.KindEndingSoon}, kinds(det.Events))
	assert.False(t, det.Flags.SoldFired)
	require.NotNil(t, det.Flags.AuctionEndSeen)
	assert.True(t, det.Flags.AuctionEndSeen.Equal(newEnd))
}

func TestDetect_FirstObservation_EndedAuction_NoItemSold(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(-2 * time.Hour)
	curr := auctionSnap(10, end)

	// The auction had already ended when tracking started; the engine never
	// saw it pending, so item_sold must not fire on any poll.
	det := d.Detect("p1", nil, curr, FlagState{})
	assert.Empty(t, det.Events)
	assert.True(t, det.Flags.SoldFired)

	det = d.Detect("p1", curr, curr, det.Flags)
	assert.Empty(t, det.Events)
}

func TestDetect_FirstObservation_InsideUrgentWindow_NoEndingSoon(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(20 * time.Minute)
	curr := auctionSnap(10, end)

	det := d.Detect("p1", nil, curr, FlagState{})
	assert.Empty(t, det.Events)
	assert.True(t, det.Flags.EndingSoonFired)
	assert.False(t, det.Flags.SoldFired)

	// The threshold was never crossed between two polls, so the second poll
	// stays quiet too. The auction ending still raises item_sold.
	det = d.Detect("p1", curr, curr, det.Flags)
	assert.Empty(t, det.Events)
}

func TestDetect_FirstObservation_OutsideWindow_FlagsUnset(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	end := detectorNow.Add(3 * time.Hour)
	curr := auctionSnap(10, end)

	det := d.Detect("p1", nil, curr, FlagState{})
	assert.Empty(t, det.Events)
	assert.False(t, det.Flags.EndingSoonFired)
	assert.False(t, det.Flags.SoldFired)
}
