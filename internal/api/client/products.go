package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tlundberg/wishwatch/internal/api/handlers"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// TrackProduct starts tracking a product.
func (c *Client) TrackProduct(
	ctx context.Context,
	req handlers.CreateProductRequest,
) (*domain.TrackedProduct, error) {
	var p domain.TrackedProduct
	if err := c.post(ctx, "/api/v1/products", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns products, optionally only tracked ones.
func (c *Client) ListProducts(
	ctx context.Context,
	trackedOnly bool,
) ([]domain.TrackedProduct, error) {
	path := "/api/v1/products"
	if trackedOnly {
		path += "?tracked=true"
	}

	var products []domain.TrackedProduct
	if err := c.get(ctx, path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product by id.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.TrackedProduct, error) {
	var p domain.TrackedProduct
	if err := c.get(ctx, "/api/v1/products/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UntrackProduct stops tracking a product and removes it with its history.
func (c *Client) UntrackProduct(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/products/"+url.PathEscape(id))
}

// GetHistory returns a product's price history, oldest first.
func (c *Client) GetHistory(ctx context.Context, id string) ([]domain.HistoryPoint, error) {
	var pts []domain.HistoryPoint
	path := fmt.Sprintf("/api/v1/products/%s/history", url.PathEscape(id))
	if err := c.get(ctx, path, &pts); err != nil {
		return nil, err
	}
	return pts, nil
}
