package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// WebhookSink posts alerts as JSON to a configured HTTP endpoint.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookSink) {
		w.client = c
	}
}

// WithHeaders sets additional request headers, e.g. auth tokens.
func WithHeaders(headers map[string]string) WebhookOption {
	return func(w *WebhookSink) {
		w.headers = headers
	}
}

// NewWebhookSink creates a webhook sink targeting url.
func NewWebhookSink(url string, opts ...WebhookOption) *WebhookSink {
	w := &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// webhookPayload is the JSON body posted for each alert. Template carries
// the stable message template name so receivers can render their own copy.
type webhookPayload struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Kind      string  `json:"kind"`
	Template  string  `json:"template"`
	Message   string  `json:"message"`
	PrevPrice float64 `json:"prev_price,omitempty"`
	NewPrice  float64 `json:"new_price,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// webhookReadPayload is posted when an alert is acknowledged, so the
// receiver can dismiss the notification it rendered for it.
type webhookReadPayload struct {
	Event string `json:"event"`
	ID    string `json:"id"`
}

// Deliver posts one alert to the webhook endpoint.
func (w *WebhookSink) Deliver(ctx context.Context, alert *domain.Alert) error {
	return w.post(ctx, webhookPayload{
		ID:        alert.ID,
		ProductID: alert.ProductID,
		Kind:      string(alert.Kind),
		Template:  alert.Template,
		Message:   alert.Message,
		PrevPrice: alert.PrevPrice,
		NewPrice:  alert.NewPrice,
		Currency:  alert.Currency,
		CreatedAt: alert.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// MarkRead posts a read event for an alert that was acknowledged.
func (w *WebhookSink) MarkRead(ctx context.Context, alertID string) error {
	return w.post(ctx, webhookReadPayload{
		Event: "alert_read",
		ID:    alertID,
	})
}

func (w *WebhookSink) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		w.url,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("webhook rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("webhook returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
