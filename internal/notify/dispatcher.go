package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/tlundberg/wishwatch/internal/metrics"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// deliverTimeout bounds a single sink delivery attempt.
const deliverTimeout = 15 * time.Second

// envelope is one unit of sink work: either an alert to deliver or the id
// of an alert that was acknowledged.
type envelope struct {
	alert  *domain.Alert
	readID string
}

// Dispatcher decouples alert creation from sink delivery through a bounded
// queue. Publish never blocks a poll cycle; when the queue is full the alert
// delivery is dropped and counted, while the alert itself stays persisted.
type Dispatcher struct {
	sink  Sink
	log   *slog.Logger
	queue chan envelope

	done chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// NewDispatcher creates a dispatcher delivering to sink with the given queue
// capacity. Call Run to start draining.
func NewDispatcher(sink Sink, queueSize int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:  sink,
		log:   slog.Default(),
		queue: make(chan envelope, queueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish queues an alert for delivery. Non-blocking.
func (d *Dispatcher) Publish(alert *domain.Alert) {
	select {
	case d.queue <- envelope{alert: alert}:
	default:
		metrics.AlertsDroppedTotal.Inc()
		d.log.Warn("alert delivery dropped, queue full",
			"alert_id", alert.ID,
			"kind", alert.Kind,
		)
	}
}

// PublishRead queues a read acknowledgement for delivery. Non-blocking; a
// dropped acknowledgement only leaves a stale notification at the sink, so
// it is logged but not counted against alert delivery.
func (d *Dispatcher) PublishRead(alertID string) {
	select {
	case d.queue <- envelope{readID: alertID}:
	default:
		d.log.Warn("read acknowledgement dropped, queue full", "alert_id", alertID)
	}
}

// Run drains the queue until ctx is canceled, then delivers what is already
// queued before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case env := <-d.queue:
			d.deliver(env)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) drain() {
	for {
		select {
		case env := <-d.queue:
			d.deliver(env)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if env.alert == nil {
		if err := d.sink.MarkRead(ctx, env.readID); err != nil {
			metrics.SinkFailuresTotal.Inc()
			d.log.Error("read acknowledgement failed",
				"alert_id", env.readID,
				"error", err,
			)
		}
		return
	}

	if err := d.sink.Deliver(ctx, env.alert); err != nil {
		metrics.SinkFailuresTotal.Inc()
		d.log.Error("alert delivery failed",
			"alert_id", env.alert.ID,
			"kind", env.alert.Kind,
			"error", err,
		)
	}
}
