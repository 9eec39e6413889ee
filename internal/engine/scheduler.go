package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tlundberg/wishwatch/internal/store"
)

// errRetryDelay is how long the scheduler waits before retrying a product
// whose cycle failed on a store error rather than a fetch error.
const errRetryDelay = time.Minute

// Scheduler owns the poll queue: it tracks when each product is next
// eligible, dispatches due products to a bounded worker pool, and guarantees
// at most one in-flight cycle per product.
type Scheduler struct {
	engine  *Engine
	store   store.Store
	log     *slog.Logger
	workers int
	now     func() time.Time

	mu       sync.Mutex
	next     map[string]time.Time
	inflight map[string]struct{}
	wake     chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithSchedulerNow overrides the clock, for tests.
func WithSchedulerNow(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a scheduler dispatching to workers concurrent poll
// cycles on e.
func NewScheduler(e *Engine, s store.Store, workers int, opts ...SchedulerOption) *Scheduler {
	sc := &Scheduler{
		engine:   e,
		store:    s,
		log:      slog.Default(),
		workers:  workers,
		now:      time.Now,
		next:     make(map[string]time.Time),
		inflight: make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Run loads the tracked products, then dispatches poll cycles until the
// context is canceled. It blocks; cancel ctx to stop, and Run returns after
// in-flight cycles finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.loadProducts(ctx); err != nil {
		return err
	}

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				s.runCycle(ctx, id)
			}
		}()
	}

	s.log.Info("scheduler started", "workers", s.workers, "products", len(s.next))

	for {
		id, wait := s.nextDue()
		if id != "" {
			select {
			case work <- id:
				continue
			case <-ctx.Done():
				s.release(id)
			}
		}
		if ctx.Err() != nil {
			close(work)
			wg.Wait()
			s.log.Info("scheduler stopped")
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Track registers a product with the queue, or reschedules it if already
// present.
func (s *Scheduler) Track(id string, nextPollAt time.Time) {
	if nextPollAt.IsZero() {
		nextPollAt = s.now()
	}
	s.mu.Lock()
	s.next[id] = nextPollAt
	s.mu.Unlock()
	s.notify()
}

// Untrack removes a product from the queue. An in-flight cycle for the
// product is left to finish; the engine discards its result.
func (s *Scheduler) Untrack(id string) {
	s.mu.Lock()
	delete(s.next, id)
	s.mu.Unlock()
	s.engine.Forget(id)
}

func (s *Scheduler) loadProducts(ctx context.Context) error {
	products, err := s.store.ListProducts(ctx, true)
	if err != nil {
		return fmt.Errorf("loading tracked products: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		at := p.NextPollAt
		if at.IsZero() {
			at = s.now()
		}
		s.next[p.ID] = at
	}
	return nil
}

// nextDue returns a due product marked in-flight, or the wait until the
// earliest eligible product.
func (s *Scheduler) nextDue() (string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var (
		dueID    string
		earliest time.Time
	)
	for id, at := range s.next {
		if _, busy := s.inflight[id]; busy {
			continue
		}
		if !at.After(now) {
			dueID = id
			break
		}
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}

	if dueID != "" {
		s.inflight[dueID] = struct{}{}
		return dueID, 0
	}
	if earliest.IsZero() {
		return "", time.Minute
	}
	return "", earliest.Sub(now)
}

func (s *Scheduler) runCycle(ctx context.Context, id string) {
	p, err := s.engine.PollCycle(ctx, id)

	s.mu.Lock()
	delete(s.inflight, id)
	switch {
	case err != nil:
		if _, still := s.next[id]; still {
			s.next[id] = s.now().Add(errRetryDelay)
		}
	case p == nil:
		delete(s.next, id)
	default:
		if _, still := s.next[id]; still {
			s.next[id] = p.NextPollAt
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("poll cycle failed", "product_id", id, "error", err)
	}
	s.notify()
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
