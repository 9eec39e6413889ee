//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

func setupPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("wishwatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgres(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func testProduct() *domain.TrackedProduct {
	return &domain.TrackedProduct{
		Retailer: domain.RetailerEbay,
		SourceID: "223344556677",
		Title:    "Vintage film camera",
		URL:      "https://www.ebay.com/itm/223344556677",
		Tracked:  true,
	}
}

func TestPostgres_Ping(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgres_ProductRoundTrip(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		p := testProduct()
		require.NoError(t, s.CreateProduct(ctx, p))
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())
		assert.False(t, p.NextPollAt.IsZero())
	})

	t.Run("full engine state survives", func(t *testing.T) {
		p := testProduct()
		p.SourceID = "state-test-1"
		interval := 15 * time.Minute
		p.PollInterval = &interval
		require.NoError(t, s.CreateProduct(ctx, p))

		now := time.Now().Truncate(time.Microsecond).UTC()
		end := now.Add(2 * time.Hour)
		bid := 42.5
		p.LastSnapshot = &domain.Snapshot{
			Timestamp:      now,
			Price:          99.99,
			Currency:       "USD",
			InStock:        true,
			AuctionEndTime: &end,
			CurrentBid:     &bid,
		}
		p.ConsecutiveFailures = 2
		p.Degraded = true
		p.LastInconsistencyAt = &now
		p.EndingSoonFired = true
		p.AuctionEndSeen = &end
		p.NextPollAt = now.Add(5 * time.Minute)
		require.NoError(t, s.UpdateProductState(ctx, p))

		got, err := s.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastSnapshot)
		assert.InDelta(t, 99.99, got.LastSnapshot.Price, 0.001)
		require.NotNil(t, got.LastSnapshot.AuctionEndTime)
		assert.True(t, got.LastSnapshot.AuctionEndTime.Equal(end))
		assert.Equal(t, 2, got.ConsecutiveFailures)
		assert.True(t, got.Degraded)
		require.NotNil(t, got.LastInconsistencyAt)
		assert.True(t, got.EndingSoonFired)
		require.NotNil(t, got.AuctionEndSeen)
		assert.True(t, got.AuctionEndSeen.Equal(end))
		require.NotNil(t, got.PollInterval)
		assert.Equal(t, interval, *got.PollInterval)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetProduct(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgres_ListProducts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	tracked := testProduct()
	tracked.SourceID = "list-1"
	require.NoError(t, s.CreateProduct(ctx, tracked))

	untracked := testProduct()
	untracked.SourceID = "list-2"
	untracked.Tracked = false
	require.NoError(t, s.CreateProduct(ctx, untracked))

	all, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, tracked.ID, only[0].ID)
}

func TestPostgres_DeleteProduct_CascadesHistoryKeepsAlerts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	p := testProduct()
	require.NoError(t, s.CreateProduct(ctx, p))
	require.NoError(t, s.AppendHistoryPoint(ctx, p.ID, domain.HistoryPoint{
		Timestamp: time.Now(), Price: 10, Currency: "USD",
	}))
	a := &domain.Alert{
		ProductID: p.ID,
		Kind:      domain.KindPriceDropped,
		Template:  string(domain.KindPriceDropped),
		Message:   "Price dropped from 20.00 to 10.00 USD",
		PrevPrice: 20,
		NewPrice:  10,
		Currency:  "USD",
	}
	require.NoError(t, s.CreateAlert(ctx, a))

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), store.ErrNotFound)

	pts, err := s.GetHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, pts)

	alerts, err := s.ListAlertsByProduct(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestPostgres_History(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	p := testProduct()
	require.NoError(t, s.CreateProduct(ctx, p))

	base := time.Now().Truncate(time.Microsecond).UTC()
	for i, price := range []float64{10, 12, 9} {
		require.NoError(t, s.AppendHistoryPoint(ctx, p.ID, domain.HistoryPoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     price,
			Currency:  "USD",
		}))
	}

	pts, err := s.GetHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.InDelta(t, 10, pts[0].Price, 0.001)
	assert.InDelta(t, 9, pts[2].Price, 0.001)

	// Replace with a compacted pair.
	require.NoError(t, s.ReplaceHistory(ctx, p.ID, []domain.HistoryPoint{
		{Timestamp: base, Price: 10, Currency: "USD"},
		{Timestamp: base.Add(2 * time.Hour), Price: 9, Currency: "USD"},
	}))

	pts, err = s.GetHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, pts, 2)
}

func TestPostgres_AlertLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	p := testProduct()
	require.NoError(t, s.CreateProduct(ctx, p))

	base := time.Now().Truncate(time.Microsecond).UTC()
	a := &domain.Alert{
		ProductID: p.ID,
		Kind:      domain.KindPriceDropped,
		Template:  string(domain.KindPriceDropped),
		Message:   "Price dropped from 100.00 to 80.00 USD",
		PrevPrice: 100,
		NewPrice:  80,
		Currency:  "USD",
		CreatedAt: base,
	}
	require.NoError(t, s.CreateAlert(ctx, a))
	assert.NotEmpty(t, a.ID)

	got, err := s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindPriceDropped, got.Kind)
	assert.InDelta(t, 100, got.PrevPrice, 0.001)
	assert.False(t, got.IsRead)

	// Coalesce moves the value and timestamp in place.
	require.NoError(t, s.CoalesceAlert(ctx, a.ID, 100, 70,
		"Price dropped from 100.00 to 70.00 USD", base.Add(time.Hour)))

	got, err = s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 70, got.NewPrice, 0.001)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Hour)))

	// Latest by dedup key.
	latest, err := s.LatestAlert(ctx, p.ID, domain.KindPriceDropped)
	require.NoError(t, err)
	assert.Equal(t, a.ID, latest.ID)

	_, err = s.LatestAlert(ctx, p.ID, domain.KindItemSold)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Read twice, idempotently.
	require.NoError(t, s.MarkAlertRead(ctx, a.ID))
	require.NoError(t, s.MarkAlertRead(ctx, a.ID))
	got, err = s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)

	unread, err := s.ListAlerts(ctx, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	require.NoError(t, s.DeleteAlert(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteAlert(ctx, a.ID), store.ErrNotFound)
}

func TestPostgres_PruneAlerts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	p := testProduct()
	require.NoError(t, s.CreateProduct(ctx, p))

	base := time.Now().Truncate(time.Microsecond).UTC()
	for i := range 8 {
		a := &domain.Alert{
			ProductID: p.ID,
			Kind:      domain.KindBackInStock,
			Template:  string(domain.KindBackInStock),
			Message:   "Back in stock",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateAlert(ctx, a))
	}

	removed, err := s.PruneAlerts(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	left, err := s.ListAlerts(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, left, 3)
	for _, a := range left {
		assert.False(t, a.CreatedAt.Before(base.Add(5 * time.Minute)))
	}
}

func TestPostgres_CountDegraded(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	healthy := testProduct()
	healthy.SourceID = "deg-1"
	require.NoError(t, s.CreateProduct(ctx, healthy))

	degraded := testProduct()
	degraded.SourceID = "deg-2"
	require.NoError(t, s.CreateProduct(ctx, degraded))
	degraded.Degraded = true
	require.NoError(t, s.UpdateProductState(ctx, degraded))

	n, err := s.CountDegraded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
