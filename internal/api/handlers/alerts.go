package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tlundberg/wishwatch/internal/store"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// defaultAlertLimit caps list responses when the caller does not set one.
const defaultAlertLimit = 100

// ReadNotifier forwards read acknowledgements toward the alert sink so
// push-style targets can dismiss their notifications. Implementations must
// not block.
type ReadNotifier interface {
	PublishRead(alertID string)
}

// AlertHandler handles alert operations.
type AlertHandler struct {
	store  store.Store
	reader ReadNotifier
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(s store.Store, reader ReadNotifier) *AlertHandler {
	return &AlertHandler{store: s, reader: reader}
}

// List handles GET /api/v1/alerts.
//
// @Summary List alerts, newest first
// @Tags alerts
// @Produce json
// @Param unread query string false "Only unread alerts" Enums(true, false)
// @Param limit query int false "Maximum number of alerts"
// @Success 200 {array} domain.Alert
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts [get]
func (h *AlertHandler) List(c echo.Context) error {
	unreadOnly := c.QueryParam("unread") == "true"

	limit := defaultAlertLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}

	alerts, err := h.store.ListAlerts(c.Request().Context(), unreadOnly, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing alerts: " + err.Error(),
		})
	}

	if alerts == nil {
		alerts = []domain.Alert{}
	}

	return c.JSON(http.StatusOK, alerts)
}

// Get handles GET /api/v1/alerts/:id.
//
// @Summary Get an alert by ID
// @Tags alerts
// @Produce json
// @Param id path string true "Alert UUID"
// @Success 200 {object} domain.Alert
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) Get(c echo.Context) error {
	id := c.Param("id")

	a, err := h.store.GetAlert(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "alert not found",
		})
	}

	return c.JSON(http.StatusOK, a)
}

// MarkRead handles POST /api/v1/alerts/:id/read. Idempotent: marking an
// already-read alert succeeds without changing its read timestamp.
//
// @Summary Mark an alert read
// @Tags alerts
// @Produce json
// @Param id path string true "Alert UUID"
// @Success 200 {object} domain.Alert
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts/{id}/read [post]
func (h *AlertHandler) MarkRead(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	prev, err := h.store.GetAlert(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "alert not found",
		})
	}

	if err := h.store.MarkAlertRead(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "marking alert read: " + err.Error(),
		})
	}

	// Tell the sink once, on the unread-to-read transition only.
	if !prev.IsRead && h.reader != nil {
		h.reader.PublishRead(id)
	}

	a, err := h.store.GetAlert(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "reloading alert: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, a)
}

// Delete handles DELETE /api/v1/alerts/:id.
//
// @Summary Delete an alert
// @Tags alerts
// @Produce json
// @Param id path string true "Alert UUID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts/{id} [delete]
func (h *AlertHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.DeleteAlert(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "deleting alert: " + err.Error(),
		})
	}

	return c.NoContent(http.StatusNoContent)
}

// ByProduct handles GET /api/v1/products/:id/alerts. Alerts outlive their
// product, so this does not 404 for unknown product ids.
//
// @Summary List a product's alerts, newest first
// @Tags alerts
// @Produce json
// @Param id path string true "Product UUID"
// @Param limit query int false "Maximum number of alerts"
// @Success 200 {array} domain.Alert
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/products/{id}/alerts [get]
func (h *AlertHandler) ByProduct(c echo.Context) error {
	productID := c.Param("id")

	limit := defaultAlertLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}

	alerts, err := h.store.ListAlertsByProduct(c.Request().Context(), productID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing alerts: " + err.Error(),
		})
	}

	if alerts == nil {
		alerts = []domain.Alert{}
	}

	return c.JSON(http.StatusOK, alerts)
}
