package store

// SQL queries for the Postgres store. Named-argument style matches pgx.NamedArgs.

const queryCreateProduct = `
INSERT INTO products (
	retailer, source_id, title, url, tracked,
	poll_interval_seconds, next_poll_at
) VALUES (
	@retailer, @source_id, @title, @url, @tracked,
	@poll_interval_seconds, @next_poll_at
)
RETURNING id, created_at, updated_at`

const productColumns = `
	id, retailer, source_id, title, url, tracked,
	poll_interval_seconds, last_snapshot,
	consecutive_failures, degraded, last_inconsistency_at,
	ending_soon_fired, sold_fired, auction_end_seen,
	next_poll_at, created_at, updated_at`

const queryGetProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1`

const queryListProducts = `
SELECT ` + productColumns + `
FROM products
WHERE ($1 = FALSE OR tracked)
ORDER BY created_at`

const queryUpdateProductState = `
UPDATE products SET
	title                 = @title,
	tracked               = @tracked,
	poll_interval_seconds = @poll_interval_seconds,
	last_snapshot         = @last_snapshot,
	consecutive_failures  = @consecutive_failures,
	degraded              = @degraded,
	last_inconsistency_at = @last_inconsistency_at,
	ending_soon_fired     = @ending_soon_fired,
	sold_fired            = @sold_fired,
	auction_end_seen      = @auction_end_seen,
	next_poll_at          = @next_poll_at,
	updated_at            = now()
WHERE id = @id`

const queryDeleteProduct = `
DELETE FROM products WHERE id = $1`

const queryCountDegraded = `
SELECT count(*) FROM products WHERE tracked AND degraded`

const queryGetHistory = `
SELECT observed_at, price, currency
FROM history_points
WHERE product_id = $1
ORDER BY observed_at`

const queryAppendHistoryPoint = `
INSERT INTO history_points (product_id, observed_at, price, currency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id, observed_at) DO NOTHING`

const queryDeleteHistory = `
DELETE FROM history_points WHERE product_id = $1`

const queryCreateAlert = `
INSERT INTO alerts (
	product_id, kind, template, message,
	prev_price, new_price, currency,
	auction_end_time, current_bid, created_at
) VALUES (
	@product_id, @kind, @template, @message,
	@prev_price, @new_price, @currency,
	@auction_end_time, @current_bid, @created_at
)
RETURNING id`

const alertColumns = `
	id, product_id, kind, template, message,
	prev_price, new_price, currency,
	auction_end_time, current_bid,
	created_at, is_read, read_at`

const queryGetAlert = `
SELECT ` + alertColumns + `
FROM alerts
WHERE id = $1`

const queryListAlerts = `
SELECT ` + alertColumns + `
FROM alerts
WHERE ($1 = FALSE OR is_read = FALSE)
ORDER BY created_at DESC
LIMIT $2`

const queryListAlertsByProduct = `
SELECT ` + alertColumns + `
FROM alerts
WHERE product_id = $1
ORDER BY created_at DESC
LIMIT $2`

const queryLatestAlert = `
SELECT ` + alertColumns + `
FROM alerts
WHERE product_id = $1 AND kind = $2
ORDER BY created_at DESC
LIMIT 1`

const queryCoalesceAlert = `
UPDATE alerts SET
	prev_price = $2,
	new_price  = $3,
	message    = $4,
	created_at = $5
WHERE id = $1`

const queryMarkAlertRead = `
UPDATE alerts SET is_read = TRUE, read_at = now()
WHERE id = $1 AND is_read = FALSE`

const queryDeleteAlert = `
DELETE FROM alerts WHERE id = $1`

const queryPruneAlerts = `
DELETE FROM alerts
WHERE id IN (
	SELECT id FROM alerts
	ORDER BY created_at DESC
	OFFSET $1
)`
