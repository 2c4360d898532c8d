package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Tracker hands events to a Sink from a fixed pool of workers. Track never
// blocks: when the queue is full the event is dropped and counted.
type Tracker struct {
	sink   Sink
	logger *slog.Logger
	queue  chan Event
	group  errgroup.Group

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	sent    atomic.Uint64
	failed  atomic.Uint64
}

// NewTracker starts the delivery workers.
func NewTracker(sink Sink, cfg Config, logger *slog.Logger) *Tracker {
	cfg = cfg.Effective()
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		sink:   sink,
		logger: logger.With("component", "analytics"),
		queue:  make(chan Event, cfg.QueueSize),
	}
	t.group.SetLimit(cfg.Workers)
	for range cfg.Workers {
		t.group.Go(t.work)
	}
	return t
}

func (t *Tracker) work() error {
	for ev := range t.queue {
		if err := t.sink.Send(context.Background(), ev); err != nil {
			t.failed.Add(1)
			t.logger.Warn("event delivery failed", "event", ev.Type, "user_id", ev.UserID, "error", err)
			continue
		}
		t.sent.Add(1)
	}
	return nil
}

// Track queues an event for delivery.
func (t *Tracker) Track(userID int64, event EventType, info string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		return
	}
	select {
	case t.queue <- Event{UserID: userID, Type: event, Info: info, Time: time.Now()}:
	default:
		t.dropped.Add(1)
		t.logger.Debug("analytics queue full, event dropped", "event", event, "user_id", userID)
	}
}

// Stats reports delivery counters.
func (t *Tracker) Stats() (sent, failed, dropped uint64) {
	return t.sent.Load(), t.failed.Load(), t.dropped.Load()
}

// Close stops accepting events, waits for queued ones to be delivered
// and closes the sink. Events still queued when ctx ends are abandoned.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = t.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.logger.Warn("analytics drain interrupted", "pending", len(t.queue))
		return ctx.Err()
	}
	return t.sink.Close()
}
