package engine

import (
	"math/rand"
	"time"

	"github.com/tlundberg/wishwatch/internal/config"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// maxBackoffShift bounds the exponential before the cap applies, avoiding
// duration overflow on long failure streaks.
const maxBackoffShift = 16

// jitterFraction spreads computed intervals by up to this fraction in either
// direction so product polls do not align into bursts.
const jitterFraction = 0.2

// PollPolicy computes when a product should next be polled.
type PollPolicy struct {
	cfg  config.EngineConfig
	rand func() float64
	now  func() time.Time
}

// PolicyOption configures a PollPolicy.
type PolicyOption func(*PollPolicy)

// WithPolicyRand overrides the jitter source, for tests.
func WithPolicyRand(f func() float64) PolicyOption {
	return func(p *PollPolicy) {
		p.rand = f
	}
}

// WithPolicyNow overrides the clock, for tests.
func WithPolicyNow(now func() time.Time) PolicyOption {
	return func(p *PollPolicy) {
		p.now = now
	}
}

// NewPollPolicy creates a policy from engine configuration.
func NewPollPolicy(cfg config.EngineConfig, opts ...PolicyOption) *PollPolicy {
	p := &PollPolicy{
		cfg:  cfg,
		rand: rand.Float64,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next returns the interval until the product's next poll after a successful
// cycle. Auctions inside the urgent window poll at the urgent interval; a
// per-product override beats the global default otherwise.
func (p *PollPolicy) Next(prod *domain.TrackedProduct, snap *domain.Snapshot) time.Duration {
	interval := p.cfg.PollInterval
	if prod.PollInterval != nil && *prod.PollInterval > 0 {
		interval = *prod.PollInterval
	}

	if snap != nil && snap.IsAuction() {
		remaining := snap.AuctionEndTime.Sub(p.now())
		if remaining > 0 && remaining <= p.cfg.AuctionUrgentThreshold {
			urgent := p.cfg.AuctionUrgentInterval
			if urgent < interval {
				interval = urgent
			}
		}
	}

	return p.jitter(interval)
}

// Backoff returns the interval until the next retry after the given number
// of consecutive failures.
func (p *PollPolicy) Backoff(failures int) time.Duration {
	shift := failures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	d := p.cfg.BackoffBase << shift
	if d > p.cfg.BackoffCap || d <= 0 {
		d = p.cfg.BackoffCap
	}
	return p.jitter(d)
}

func (p *PollPolicy) jitter(d time.Duration) time.Duration {
	spread := 1 - jitterFraction + 2*jitterFraction*p.rand()
	return time.Duration(float64(d) * spread)
}
