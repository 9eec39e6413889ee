package notify

import (
	"context"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// NoopSink discards alerts. Used when no notification target is configured;
// alerts remain readable through the API.
type NoopSink struct{}

// NewNoopSink creates a NoopSink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Deliver does nothing.
func (n *NoopSink) Deliver(context.Context, *domain.Alert) error {
	return nil
}

// MarkRead does nothing.
func (n *NoopSink) MarkRead(context.Context, string) error {
	return nil
}
