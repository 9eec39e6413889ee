package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

const defaultPoolSize = 10

// Postgres implements Store using pgxpool (connection-pooled PostgreSQL).
//
// Tested against a real database via the build-tagged integration tests.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store with connection pooling.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *Postgres) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// CreateProduct inserts a new tracked product.
func (s *Postgres) CreateProduct(ctx context.Context, p *domain.TrackedProduct) error {
	if p.NextPollAt.IsZero() {
		p.NextPollAt = time.Now()
	}

	args := pgx.NamedArgs{
		"retailer":              string(p.Retailer),
		"source_id":             p.SourceID,
		"title":                 p.Title,
		"url":                   p.URL,
		"tracked":               p.Tracked,
		"poll_interval_seconds": intervalSeconds(p.PollInterval),
		"next_poll_at":          p.NextPollAt,
	}

	err := s.pool.QueryRow(ctx, queryCreateProduct, args).Scan(
		&p.ID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by id.
func (s *Postgres) GetProduct(ctx context.Context, id string) (*domain.TrackedProduct, error) {
	p := &domain.TrackedProduct{}
	if err := scanProduct(s.pool.QueryRow(ctx, queryGetProduct, id), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ListProducts returns all products, optionally only tracked ones.
func (s *Postgres) ListProducts(
	ctx context.Context,
	trackedOnly bool,
) ([]domain.TrackedProduct, error) {
	rows, err := s.pool.Query(ctx, queryListProducts, trackedOnly)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []domain.TrackedProduct
	for rows.Next() {
		var p domain.TrackedProduct
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// UpdateProductState persists the engine-owned mutable product fields.
func (s *Postgres) UpdateProductState(ctx context.Context, p *domain.TrackedProduct) error {
	snapJSON, err := marshalSnapshot(p.LastSnapshot)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"id":                    p.ID,
		"title":                 p.Title,
		"tracked":               p.Tracked,
		"poll_interval_seconds": intervalSeconds(p.PollInterval),
		"last_snapshot":         snapJSON,
		"consecutive_failures":  p.ConsecutiveFailures,
		"degraded":              p.Degraded,
		"last_inconsistency_at": p.LastInconsistencyAt,
		"ending_soon_fired":     p.EndingSoonFired,
		"sold_fired":            p.SoldFired,
		"auction_end_seen":      p.AuctionEndSeen,
		"next_poll_at":          p.NextPollAt,
	}

	tag, err := s.pool.Exec(ctx, queryUpdateProductState, args)
	if err != nil {
		return fmt.Errorf("updating product state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product; its history goes with it via cascade,
// its alerts stay behind.
func (s *Postgres) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, queryDeleteProduct, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDegraded returns the number of tracked products in degraded state.
func (s *Postgres) CountDegraded(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, queryCountDegraded).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting degraded products: %w", err)
	}
	return n, nil
}

// GetHistory returns the ordered history sequence for a product.
func (s *Postgres) GetHistory(
	ctx context.Context,
	productID string,
) ([]domain.HistoryPoint, error) {
	rows, err := s.pool.Query(ctx, queryGetHistory, productID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var pts []domain.HistoryPoint
	for rows.Next() {
		var pt domain.HistoryPoint
		if err := rows.Scan(&pt.Timestamp, &pt.Price, &pt.Currency); err != nil {
			return nil, fmt.Errorf("scanning history point: %w", err)
		}
		pts = append(pts, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return pts, nil
}

// AppendHistoryPoint appends a single history point.
func (s *Postgres) AppendHistoryPoint(
	ctx context.Context,
	productID string,
	pt domain.HistoryPoint,
) error {
	_, err := s.pool.Exec(ctx, queryAppendHistoryPoint,
		productID, pt.Timestamp, pt.Price, pt.Currency,
	)
	if err != nil {
		return fmt.Errorf("appending history point: %w", err)
	}
	return nil
}

// ReplaceHistory swaps a product's full history for the given sequence,
// atomically in one transaction.
func (s *Postgres) ReplaceHistory(
	ctx context.Context,
	productID string,
	pts []domain.HistoryPoint,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, queryDeleteHistory, productID); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	for _, pt := range pts {
		if _, err := tx.Exec(ctx, queryAppendHistoryPoint,
			productID, pt.Timestamp, pt.Price, pt.Currency,
		); err != nil {
			return fmt.Errorf("writing history point: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing history replace: %w", err)
	}
	return nil
}

// CreateAlert inserts a new alert.
func (s *Postgres) CreateAlert(ctx context.Context, a *domain.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	args := pgx.NamedArgs{
		"product_id":       a.ProductID,
		"kind":             string(a.Kind),
		"template":         a.Template,
		"message":          a.Message,
		"prev_price":       a.PrevPrice,
		"new_price":        a.NewPrice,
		"currency":         a.Currency,
		"auction_end_time": a.AuctionEndTime,
		"current_bid":      a.CurrentBid,
		"created_at":       a.CreatedAt,
	}

	if err := s.pool.QueryRow(ctx, queryCreateAlert, args).Scan(&a.ID); err != nil {
		return fmt.Errorf("creating alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id.
func (s *Postgres) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	a := &domain.Alert{}
	if err := scanAlert(s.pool.QueryRow(ctx, queryGetAlert, id), a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts newest-first, optionally unread only.
func (s *Postgres) ListAlerts(
	ctx context.Context,
	unreadOnly bool,
	limit int,
) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryAlerts(ctx, queryListAlerts, unreadOnly, limit)
}

// ListAlertsByProduct returns a product's alerts newest-first.
func (s *Postgres) ListAlertsByProduct(
	ctx context.Context,
	productID string,
	limit int,
) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryAlerts(ctx, queryListAlertsByProduct, productID, limit)
}

// LatestAlert returns the most recent alert for a (product, kind) dedup key.
func (s *Postgres) LatestAlert(
	ctx context.Context,
	productID string,
	kind domain.ChangeKind,
) (*domain.Alert, error) {
	a := &domain.Alert{}
	err := scanAlert(s.pool.QueryRow(ctx, queryLatestAlert, productID, string(kind)), a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest alert: %w", err)
	}
	return a, nil
}

// CoalesceAlert updates a pending alert's value and timestamp in place.
func (s *Postgres) CoalesceAlert(
	ctx context.Context,
	id string,
	prevPrice, newPrice float64,
	message string,
	at time.Time,
) error {
	tag, err := s.pool.Exec(ctx, queryCoalesceAlert, id, prevPrice, newPrice, message, at)
	if err != nil {
		return fmt.Errorf("coalescing alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAlertRead marks an alert as read. Idempotent.
func (s *Postgres) MarkAlertRead(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, queryMarkAlertRead, id); err != nil {
		return fmt.Errorf("marking alert read: %w", err)
	}
	return nil
}

// DeleteAlert removes an alert.
func (s *Postgres) DeleteAlert(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, queryDeleteAlert, id)
	if err != nil {
		return fmt.Errorf("deleting alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneAlerts removes the oldest alerts beyond keep.
func (s *Postgres) PruneAlerts(ctx context.Context, keep int) (int, error) {
	tag, err := s.pool.Exec(ctx, queryPruneAlerts, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning alerts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Postgres) queryAlerts(
	ctx context.Context,
	sql string,
	args ...any,
) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := scanAlert(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable, p *domain.TrackedProduct) error {
	var (
		retailer    string
		intervalSec *int64
		snapJSON    []byte
	)

	err := row.Scan(
		&p.ID, &retailer, &p.SourceID, &p.Title, &p.URL, &p.Tracked,
		&intervalSec, &snapJSON,
		&p.ConsecutiveFailures, &p.Degraded, &p.LastInconsistencyAt,
		&p.EndingSoonFired, &p.SoldFired, &p.AuctionEndSeen,
		&p.NextPollAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	p.Retailer = domain.Retailer(retailer)
	if intervalSec != nil {
		d := time.Duration(*intervalSec) * time.Second
		p.PollInterval = &d
	}
	if len(snapJSON) > 0 {
		snap := &domain.Snapshot{}
		if err := json.Unmarshal(snapJSON, snap); err != nil {
			return fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		p.LastSnapshot = snap
	}
	return nil
}

func scanAlert(row scannable, a *domain.Alert) error {
	var (
		kind      string
		prevPrice *float64
		newPrice  *float64
		currency  *string
	)

	err := row.Scan(
		&a.ID, &a.ProductID, &kind, &a.Template, &a.Message,
		&prevPrice, &newPrice, &currency,
		&a.AuctionEndTime, &a.CurrentBid,
		&a.CreatedAt, &a.IsRead, &a.ReadAt,
	)
	if err != nil {
		return err
	}

	a.Kind = domain.ChangeKind(kind)
	if prevPrice != nil {
		a.PrevPrice = *prevPrice
	}
	if newPrice != nil {
		a.NewPrice = *newPrice
	}
	if currency != nil {
		a.Currency = *currency
	}
	return nil
}

func marshalSnapshot(snap *domain.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

func intervalSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	s := int64(*d / time.Second)
	return &s
}
