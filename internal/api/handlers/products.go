package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Tracker is the scheduler surface the handlers need: registering a newly
// tracked product and dropping an untracked one from the poll queue.
type Tracker interface {
	Track(id string, nextPollAt time.Time)
	Untrack(id string)
}

// ProductHandler handles tracked-product operations.
type ProductHandler struct {
	store   store.Store
	tracker Tracker
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(s store.Store, t Tracker) *ProductHandler {
	return &ProductHandler{store: s, tracker: t}
}

// CreateProductRequest is the body for tracking a product.
type CreateProductRequest struct {
	Retailer string `json:"retailer"`
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`

	// PollInterval overrides the global poll interval, e.g. "30m".
	PollInterval string `json:"poll_interval,omitempty"`
}

// Create handles POST /api/v1/products: start tracking a product.
//
// @Summary Track a product
// @Tags products
// @Accept json
// @Produce json
// @Param product body CreateProductRequest true "Product to track"
// @Success 201 {object} domain.TrackedProduct
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	var req CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if req.Retailer == "" || req.SourceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "retailer and source_id are required",
		})
	}

	p := &domain.TrackedProduct{
		Retailer: domain.Retailer(req.Retailer),
		SourceID: req.SourceID,
		Title:    req.Title,
		URL:      req.URL,
		Tracked:  true,
	}

	if req.PollInterval != "" {
		interval, err := time.ParseDuration(req.PollInterval)
		if err != nil || interval <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "poll_interval must be a positive duration",
			})
		}
		p.PollInterval = &interval
	}

	if err := h.store.CreateProduct(c.Request().Context(), p); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "creating product: " + err.Error(),
		})
	}

	h.tracker.Track(p.ID, p.NextPollAt)

	return c.JSON(http.StatusCreated, p)
}

// List handles GET /api/v1/products.
//
// @Summary List products
// @Tags products
// @Produce json
// @Param tracked query string false "Only tracked products" Enums(true, false)
// @Success 200 {array} domain.TrackedProduct
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/products [get]
func (h *ProductHandler) List(c echo.Context) error {
	trackedOnly := c.QueryParam("tracked") == "true"

	products, err := h.store.ListProducts(c.Request().Context(), trackedOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing products: " + err.Error(),
		})
	}

	if products == nil {
		products = []domain.TrackedProduct{}
	}

	return c.JSON(http.StatusOK, products)
}

// Get handles GET /api/v1/products/:id.
//
// @Summary Get a product by ID
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Success 200 {object} domain.TrackedProduct
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	id := c.Param("id")

	p, err := h.store.GetProduct(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "product not found",
		})
	}

	return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/v1/products/:id: untrack and remove a product.
// Its history goes with it; alerts already raised stay.
//
// @Summary Untrack a product
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.DeleteProduct(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "product not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "deleting product: " + err.Error(),
		})
	}

	h.tracker.Untrack(id)

	return c.NoContent(http.StatusNoContent)
}

// History handles GET /api/v1/products/:id/history.
//
// @Summary Get a product's price history
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Success 200 {array} domain.HistoryPoint
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/products/{id}/history [get]
func (h *ProductHandler) History(c echo.Context) error {
	id := c.Param("id")

	if _, err := h.store.GetProduct(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "product not found",
		})
	}

	pts, err := h.store.GetHistory(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "loading history: " + err.Error(),
		})
	}

	if pts == nil {
		pts = []domain.HistoryPoint{}
	}

	return c.JSON(http.StatusOK, pts)
}
