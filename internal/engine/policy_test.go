package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tlundberg/wishwatch/internal/config"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

var policyNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// midJitter keeps intervals exactly at their nominal value.
func midJitter() float64 { return 0.5 }

func newTestPolicy() *PollPolicy {
	return NewPollPolicy(config.EngineConfig{
		PollInterval:           time.Hour,
		AuctionUrgentInterval:  5 * time.Minute,
		AuctionUrgentThreshold: time.Hour,
		BackoffBase:            time.Minute,
		BackoffCap:             30 * time.Minute,
	},
		WithPolicyRand(midJitter),
		WithPolicyNow(func() time.Time { return policyNow }),
	)
}

func TestNext_DefaultInterval(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()
	got := p.Next(&domain.TrackedProduct{}, &domain.Snapshot{})

	assert.Equal(t, time.Hour, got)
}

func TestNext_PerProductOverride(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()
	override := 15 * time.Minute
	got := p.Next(&domain.TrackedProduct{PollInterval: &override}, &domain.Snapshot{})

	assert.Equal(t, override, got)
}

func TestNext_AuctionInsideUrgentWindow(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()
	end := policyNow.Add(30 * time.Minute)
	got := p.Next(&domain.TrackedProduct{}, &domain.Snapshot{AuctionEndTime: &end})

	assert.Equal(t, 5*time.Minute, got)
}

func TestNext_AuctionOutsideUrgentWindow(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()
	end := policyNow.Add(6 * time.Hour)
	got := p.Next(&domain.TrackedProduct{}, &domain.Snapshot{AuctionEndTime: &end})

	assert.Equal(t, time.Hour, got)
}

func TestNext_EndedAuction_NotUrgent(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()
	end := policyNow.Add(-time.Minute)
	got := p.Next(&domain.TrackedProduct{}, &domain.Snapshot{AuctionEndTime: &end})

	assert.Equal(t, time.Hour, got)
}

func TestBackoff_DoublesPerFailure(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()

	assert.Equal(t, 2*time.Minute, p.Backoff(1))
	assert.Equal(t, 4*time.Minute, p.Backoff(2))
	assert.Equal(t, 8*time.Minute, p.Backoff(3))
}

func TestBackoff_Capped(t *testing.T) {
	t.Parallel()

	p := newTestPolicy()

	assert.Equal(t, 30*time.Minute, p.Backoff(5))
	assert.Equal(t, 30*time.Minute, p.Backoff(100))
}

func TestJitter_Bounds(t *testing.T) {
	t.Parallel()

	low := NewPollPolicy(config.EngineConfig{PollInterval: time.Hour},
		WithPolicyRand(func() float64 { return 0 }))
	high := NewPollPolicy(config.EngineConfig{PollInterval: time.Hour},
		WithPolicyRand(func() float64 { return 1 }))

	assert.Equal(t, 48*time.Minute, low.Next(&domain.TrackedProduct{}, nil))
	assert.Equal(t, 72*time.Minute, high.Next(&domain.TrackedProduct{}, nil))
}
