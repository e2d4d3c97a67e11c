package signaling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DispatcherConfig sizes the fan-out queue.
type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	out := c
	if out.QueueSize <= 0 {
		out.QueueSize = 1024
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.PublishTimeout <= 0 {
		out.PublishTimeout = 3 * time.Second
	}
	return out
}

type job struct {
	ctx    context.Context
	userID string
	env    Envelope
}

// Dispatcher publishes deliveries on a bounded worker pool.
//
// Dispatch never blocks and never reports publish failures to the caller:
// the state change that produced the events is already committed. Failures
// and queue overflow are logged.
type Dispatcher struct {
	bus Bus
	log *slog.Logger
	cfg DispatcherConfig

	mu      sync.RWMutex
	closed  bool
	queue   chan job
	pending sync.WaitGroup
	group   *errgroup.Group
}

func NewDispatcher(bus Bus, log *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		bus:   bus,
		log:   log,
		cfg:   cfg,
		queue: make(chan job, cfg.QueueSize),
		group: &errgroup.Group{},
	}
	for i := 0; i < cfg.Workers; i++ {
		d.group.Go(d.work)
	}
	return d
}

// Dispatch enqueues deliveries. ctx values (request logger) are kept but its
// cancellation is not: the request usually returns before publishing ends.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveries []Delivery) {
	base := context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, dl := range deliveries {
		env, err := Encode(dl.Message)
		if err != nil {
			d.log.Error("signaling: encode failed", "user_id", dl.UserID, "session_id", dl.Message.SessionID, "err", err)
			continue
		}
		if d.closed {
			d.log.Warn("signaling: dispatcher closed, dropping event", "user_id", dl.UserID, "type", env.Type, "session_id", env.SessionID)
			continue
		}
		d.pending.Add(1)
		select {
		case d.queue <- job{ctx: base, userID: dl.UserID, env: env}:
		default:
			d.pending.Done()
			d.log.Warn("signaling: queue full, dropping event", "user_id", dl.UserID, "type", env.Type, "session_id", env.SessionID)
		}
	}
}

func (d *Dispatcher) work() error {
	for j := range d.queue {
		d.publish(j)
		d.pending.Done()
	}
	return nil
}

func (d *Dispatcher) publish(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.cfg.PublishTimeout)
	defer cancel()
	if err := d.bus.Publish(ctx, j.userID, j.env); err != nil {
		d.log.Warn("signaling: publish failed", "user_id", j.userID, "type", j.env.Type, "session_id", j.env.SessionID, "err", err)
	}
}

// Flush waits until every accepted delivery has been attempted.
func (d *Dispatcher) Flush() { d.pending.Wait() }

// Close stops accepting work and waits for queued deliveries, or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
