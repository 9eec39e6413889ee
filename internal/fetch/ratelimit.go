package fetch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a per-retailer token bucket placed ahead of every outbound
// fetch. Workers share one Limiter per retailer, so a burst of due products
// from the same source is smeared out instead of hammering the endpoint.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter creates a limiter with the given sustained per-second rate and
// burst size.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the limiter allows a call or the context is canceled.
// A context deadline hit while queued here counts as the fetch's timeout.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}
