// Package domain defines the core business types for the wishwatch engine.
package domain

import (
	"time"
)

// Retailer identifies the source marketplace of a tracked product.
type Retailer string

// Retailer constants.
const (
	RetailerEbay    Retailer = "ebay"
	RetailerAmazon  Retailer = "amazon"
	RetailerEtsy    Retailer = "etsy"
	RetailerGeneric Retailer = "generic"
)

// ChangeKind identifies the type of a detected product transition.
type ChangeKind string

// Change kind constants. These double as the stable alert message template
// names consumed by the sink's presentation layer.
const (
	KindPriceDropped   ChangeKind = "price_dropped"
	KindPriceIncreased ChangeKind = "price_increased"
	KindBackInStock    ChangeKind = "back_in_stock"
	KindSoldOut        ChangeKind = "sold_out"
	KindEndingSoon     ChangeKind = "ending_soon"
	KindItemSold       ChangeKind = "item_sold"
)

// Snapshot is a single point-in-time read of a product's price and
// availability from its source retailer. Immutable after creation.
type Snapshot struct {
	Timestamp      time.Time  `json:"timestamp"                  db:"fetched_at"`
	Price          float64    `json:"price"                      db:"price"`
	Currency       string     `json:"currency"                   db:"currency"`
	InStock        bool       `json:"in_stock"                   db:"in_stock"`
	StockQuantity  *int       `json:"stock_quantity,omitempty"   db:"stock_quantity"`
	Availability   string     `json:"availability,omitempty"     db:"availability"`
	AuctionEndTime *time.Time `json:"auction_end_time,omitempty" db:"auction_end_time"`
	CurrentBid     *float64   `json:"current_bid,omitempty"      db:"current_bid"`
}

// IsAuction reports whether this snapshot describes an auction listing.
func (s *Snapshot) IsAuction() bool {
	return s.AuctionEndTime != nil
}

// TrackedProduct is a product the user has marked for tracking, together with
// the engine-owned polling and one-shot alert state.
type TrackedProduct struct {
	ID       string   `json:"id"        db:"id"`
	Retailer Retailer `json:"retailer"  db:"retailer"`
	SourceID string   `json:"source_id" db:"source_id"`
	Title    string   `json:"title"     db:"title"`
	URL      string   `json:"url"       db:"url"`

	Tracked      bool           `json:"tracked"                 db:"tracked"`
	PollInterval *time.Duration `json:"poll_interval,omitempty" db:"poll_interval"`

	LastSnapshot *Snapshot `json:"last_snapshot,omitempty"`

	// Fetch health.
	ConsecutiveFailures int        `json:"consecutive_failures"            db:"consecutive_failures"`
	Degraded            bool       `json:"degraded"                        db:"degraded"`
	LastInconsistencyAt *time.Time `json:"last_inconsistency_at,omitempty" db:"last_inconsistency_at"`

	// One-shot auction flags. AuctionEndSeen records the end time the flags
	// were set against; a different end time (relist) resets both flags.
	EndingSoonFired bool       `json:"ending_soon_fired"          db:"ending_soon_fired"`
	SoldFired       bool       `json:"sold_fired"                 db:"sold_fired"`
	AuctionEndSeen  *time.Time `json:"auction_end_seen,omitempty" db:"auction_end_seen"`

	NextPollAt time.Time `json:"next_poll_at" db:"next_poll_at"`
	CreatedAt  time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"   db:"updated_at"`
}

// ResetAuctionFlags clears the one-shot flags and records the end time they
// now apply to.
func (p *TrackedProduct) ResetAuctionFlags(end *time.Time) {
	p.EndingSoonFired = false
	p.SoldFired = false
	p.AuctionEndSeen = end
}

// HistoryPoint is the compacted subset of a Snapshot retained for trend
// display. History for a product is monotonically ordered by timestamp.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp" db:"observed_at"`
	Price     float64   `json:"price"     db:"price"`
	Currency  string    `json:"currency"  db:"currency"`
}

// SamePrice reports whether two points carry an identical (price, currency)
// pair.
func (h HistoryPoint) SamePrice(o HistoryPoint) bool {
	return h.Price == o.Price && h.Currency == o.Currency
}

// ChangeEvent is a detected, typed transition between two consecutive
// snapshots of the same product. Transient: produced and consumed within one
// poll cycle, never persisted beyond the alert it generates.
type ChangeEvent struct {
	ProductID string     `json:"product_id"`
	Kind      ChangeKind `json:"kind"`

	PrevPrice float64 `json:"prev_price,omitempty"`
	NewPrice  float64 `json:"new_price,omitempty"`
	Currency  string  `json:"currency,omitempty"`

	AuctionEndTime *time.Time `json:"auction_end_time,omitempty"`
	CurrentBid     *float64   `json:"current_bid,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Alert is a deduplicated, user-facing notification derived from one or more
// ChangeEvents. Alerts reference products by id only and survive product
// deletion.
type Alert struct {
	ID        string     `json:"id"         db:"id"`
	ProductID string     `json:"product_id" db:"product_id"`
	Kind      ChangeKind `json:"kind"       db:"kind"`

	// Template is the stable message template name; Message is a default
	// rendering for sinks without their own presentation layer.
	Template string `json:"template" db:"template"`
	Message  string `json:"message"  db:"message"`

	PrevPrice float64 `json:"prev_price,omitempty" db:"prev_price"`
	NewPrice  float64 `json:"new_price,omitempty"  db:"new_price"`
	Currency  string  `json:"currency,omitempty"   db:"currency"`

	AuctionEndTime *time.Time `json:"auction_end_time,omitempty" db:"auction_end_time"`
	CurrentBid     *float64   `json:"current_bid,omitempty"      db:"current_bid"`

	CreatedAt time.Time  `json:"created_at"        db:"created_at"`
	IsRead    bool       `json:"is_read"           db:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty" db:"read_at"`
}
