// Package notify delivers alerts to their configured sinks.
package notify

import (
	"context"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Sink delivers alerts out of the engine. The store is the system of record;
// sinks are best-effort and delivery failures never roll back an alert.
// MarkRead tells the sink an alert was acknowledged so push-style targets
// can dismiss the corresponding notification.
type Sink interface {
	Deliver(ctx context.Context, alert *domain.Alert) error
	MarkRead(ctx context.Context, alertID string) error
}
