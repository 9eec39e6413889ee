package client

import (
	"context"
	"fmt"
	"net/url"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// ListAlerts returns alerts newest first.
func (c *Client) ListAlerts(
	ctx context.Context,
	unreadOnly bool,
	limit int,
) ([]domain.Alert, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}

	path := "/api/v1/alerts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var alerts []domain.Alert
	if err := c.get(ctx, path, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkAlertRead marks one alert as read and returns the updated alert.
func (c *Client) MarkAlertRead(ctx context.Context, id string) (*domain.Alert, error) {
	var a domain.Alert
	path := fmt.Sprintf("/api/v1/alerts/%s/read", url.PathEscape(id))
	if err := c.post(ctx, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAlert removes an alert.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/alerts/"+url.PathEscape(id))
}

// ProductAlerts returns a product's alerts newest first.
func (c *Client) ProductAlerts(
	ctx context.Context,
	productID string,
	limit int,
) ([]domain.Alert, error) {
	path := fmt.Sprintf("/api/v1/products/%s/alerts", url.PathEscape(productID))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var alerts []domain.Alert
	if err := c.get(ctx, path, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}
