package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

var dedupNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestDedup(s store.Store) *Deduplicator {
	return NewDeduplicator(s, 6*time.Hour, WithDedupNow(func() time.Time {
		return dedupNow
	}))
}

func priceDropEvent(at time.Time, prev, next float64) domain.ChangeEvent {
	return domain.ChangeEvent{
		ProductID: "p1",
		Kind:      domain.KindPriceDropped,
		PrevPrice: prev,
		NewPrice:  next,
		Currency:  "USD",
		Timestamp: at,
	}
}

func TestProcess_FirstEventCreatesAlert(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)

	alert, err := d.Process(context.Background(), priceDropEvent(dedupNow, 100, 80))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, domain.KindPriceDropped, alert.Kind)
	assert.Equal(t, string(domain.KindPriceDropped), alert.Template)
	assert.Contains(t, alert.Message, "100.00")
	assert.Contains(t, alert.Message, "80.00")

	stored, err := ms.ListAlerts(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcess_UnreadPriceAlertCoalesced(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	first, err := d.Process(ctx, priceDropEvent(dedupNow.Add(-time.Hour), 100, 80))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Process(ctx, priceDropEvent(dedupNow, 80, 70))
	require.NoError(t, err)
	assert.Nil(t, second)

	stored, err := ms.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// The pending alert carries the original baseline and the newest price.
	assert.InDelta(t, 100, stored[0].PrevPrice, 1e-9)
	assert.InDelta(t, 70, stored[0].NewPrice, 1e-9)
	assert.Contains(t, stored[0].Message, "70.00")
}

func TestProcess_ReadAlertGetsFreshOne(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	first, err := d.Process(ctx, priceDropEvent(dedupNow.Add(-time.Hour), 100, 80))
	require.NoError(t, err)
	require.NoError(t, ms.MarkAlertRead(ctx, first.ID))

	second, err := d.Process(ctx, priceDropEvent(dedupNow, 80, 70))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := ms.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestProcess_StockEventSuppressedInCooldown(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	ev := domain.ChangeEvent{
		ProductID: "p1",
		Kind:      domain.KindBackInStock,
		Timestamp: dedupNow.Add(-time.Hour),
	}

	first, err := d.Process(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, first)

	ev.Timestamp = dedupNow
	second, err := d.Process(ctx, ev)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestProcess_CooldownExpired_NewAlert(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	first, err := d.Process(ctx, priceDropEvent(dedupNow.Add(-7*time.Hour), 100, 80))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Process(ctx, priceDropEvent(dedupNow, 80, 70))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestProcess_OneShotSuppressedForSameAuction(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	end := dedupNow.Add(30 * time.Minute)
	ev := domain.ChangeEvent{
		ProductID:      "p1",
		Kind:           domain.KindEndingSoon,
		AuctionEndTime: &end,
		Timestamp:      dedupNow,
	}

	first, err := d.Process(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Process(ctx, ev)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestProcess_OneShotSurvivesRestart(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	ctx := context.Background()

	end := dedupNow.Add(30 * time.Minute)
	ev := domain.ChangeEvent{
		ProductID:      "p1",
		Kind:           domain.KindEndingSoon,
		AuctionEndTime: &end,
		Timestamp:      dedupNow,
	}

	first, err := newTestDedup(ms).Process(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, first)

	// A fresh deduplicator over the same store rehydrates from the
	// persisted alert and still suppresses.
	second, err := newTestDedup(ms).Process(ctx, ev)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestProcess_OneShotRelistAllowsNewAlert(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	oldEnd := dedupNow.Add(-time.Hour)
	newEnd := dedupNow.Add(30 * time.Minute)

	first, err := d.Process(ctx, domain.ChangeEvent{
		ProductID:      "p1",
		Kind:           domain.KindEndingSoon,
		AuctionEndTime: &oldEnd,
		Timestamp:      dedupNow.Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Process(ctx, domain.ChangeEvent{
		ProductID:      "p1",
		Kind:           domain.KindEndingSoon,
		AuctionEndTime: &newEnd,
		Timestamp:      dedupNow,
	})
	require.NoError(t, err)
	assert.NotNil(t, second)
}

func TestProcess_CoalescedAlertDeletedMeanwhile(t *testing.T) {
	t.Parallel()

	ms := store.NewMemory()
	d := newTestDedup(ms)
	ctx := context.Background()

	first, err := d.Process(ctx, priceDropEvent(dedupNow.Add(-time.Hour), 100, 80))
	require.NoError(t, err)
	require.NoError(t, ms.DeleteAlert(ctx, first.ID))

	// The cached entry points at a gone alert; a fresh one is created.
	second, err := d.Process(ctx, priceDropEvent(dedupNow, 80, 70))
	require.NoError(t, err)
	require.NotNil(t, second)
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		kind domain.ChangeKind
		want string
	}{
		{"drop", domain.KindPriceDropped, "Price dropped from 99.99 to 79.99 USD"},
		{"increase", domain.KindPriceIncreased, "Price increased from 99.99 to 79.99 USD"},
		{"back in stock", domain.KindBackInStock, "Back in stock"},
		{"sold out", domain.KindSoldOut, "Sold out"},
		{"ending soon", domain.KindEndingSoon, "Auction ending soon, closes 2026-09-15T18:00:00Z"},
		{"item sold", domain.KindItemSold, "Auction ended"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FormatMessage(tt.kind, 99.99, 79.99, "USD", &end)
			assert.Equal(t, tt.want, got)
		})
	}
}
