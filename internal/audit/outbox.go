package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer receives delivery outcomes, typically for metrics.
type Observer interface {
	ObserveDelivery(event string, err error)
	ObserveDrop(event string)
}

// OutboxConfig tunes the outbox.
type OutboxConfig struct {
	Buffer          int
	Workers         int
	DeliveryTimeout time.Duration
	Observer        Observer
}

// OutboxStats are cumulative counters since construction.
type OutboxStats struct {
	Published uint64
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

// Outbox is the post-commit hook between the core and its audit sink.
// Publish enqueues without blocking; when the buffer is full the event is
// dropped and counted. Dispatch goroutines started by Run hand events to the
// sink, logging and discarding any failure.
type Outbox struct {
	sink     Sink
	logger   *slog.Logger
	queue    chan Event
	workers  int
	timeout  time.Duration
	observer Observer
	now      func() time.Time

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewOutbox builds an outbox delivering to sink.
func NewOutbox(sink Sink, logger *slog.Logger, cfg OutboxConfig) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	return &Outbox{
		sink:     sink,
		logger:   logger,
		queue:    make(chan Event, cfg.Buffer),
		workers:  cfg.Workers,
		timeout:  cfg.DeliveryTimeout,
		observer: cfg.Observer,
		now:      time.Now,
	}
}

// Publish implements Publisher.
func (o *Outbox) Publish(_ context.Context, evt Event) {
	if o == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = o.now().UTC()
	}
	select {
	case o.queue <- evt:
		o.published.Add(1)
	default:
		o.dropped.Add(1)
		if o.observer != nil {
			o.observer.ObserveDrop(evt.Name)
		}
		o.logger.Warn("audit outbox full, event dropped",
			slog.String("event", evt.Name),
			slog.String("entity_id", evt.EntityID),
		)
	}
}

// Run dispatches events until ctx is cancelled, then drains what is buffered.
func (o *Outbox) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case evt := <-o.queue:
					o.deliver(evt)
				}
			}
		})
	}
	_ = g.Wait()
	o.drain()
	return nil
}

// Stats returns a snapshot of the counters.
func (o *Outbox) Stats() OutboxStats {
	return OutboxStats{
		Published: o.published.Load(),
		Delivered: o.delivered.Load(),
		Failed:    o.failed.Load(),
		Dropped:   o.dropped.Load(),
	}
}

// Pending reports buffered, undelivered events.
func (o *Outbox) Pending() int {
	return len(o.queue)
}

func (o *Outbox) drain() {
	for {
		select {
		case evt := <-o.queue:
			o.deliver(evt)
		default:
			return
		}
	}
}

func (o *Outbox) deliver(evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	err := o.safeRecord(ctx, evt)
	if o.observer != nil {
		o.observer.ObserveDelivery(evt.Name, err)
	}
	if err != nil {
		o.failed.Add(1)
		o.logger.Warn("audit sink record",
			slog.String("event", evt.Name),
			slog.String("entity_id", evt.EntityID),
			slog.Any("error", err),
		)
		return
	}
	o.delivered.Add(1)
}

func (o *Outbox) safeRecord(ctx context.Context, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panic: %v", r)
		}
	}()
	if o.sink == nil {
		return nil
	}
	return o.sink.Record(ctx, evt)
}
