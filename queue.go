package layerz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/zoobzio/layerz/config"
)

// ErrReporterClosed is returned by AsyncReporter.Send after Close.
var ErrReporterClosed = errors.New("reporter closed")

// AsyncReporter hands events to another Reporter on background workers so
// transmission never runs on the instrumented call path.
// Pending events are held in a ring buffer; when it is full new events are
// dropped and counted.
//
//nolint:govet // Field order optimized for functionality over memory
type AsyncReporter struct {
	next     Reporter
	pending  *queue.Queue
	cond     *sync.Cond
	onError  func(ev *Event, err error)
	onDrop   func(ev *Event)
	wg       sync.WaitGroup
	mu       sync.Mutex
	capacity int
	closed   bool
	dropped  atomic.Uint64
	failed   atomic.Uint64
	sent     atomic.Uint64
}

// AsyncOption configures an AsyncReporter.
type AsyncOption func(*AsyncReporter)

// WithErrorHandler is called from a worker whenever the wrapped reporter
// fails or panics.
func WithErrorHandler(fn func(ev *Event, err error)) AsyncOption {
	return func(r *AsyncReporter) {
		r.onError = fn
	}
}

// WithDropHandler is called whenever an event is dropped because the queue
// is full.
func WithDropHandler(fn func(ev *Event)) AsyncOption {
	return func(r *AsyncReporter) {
		r.onDrop = fn
	}
}

// NewAsyncReporter starts workers goroutines sending to next. A capacity of
// zero leaves the queue unbounded.
func NewAsyncReporter(next Reporter, capacity, workers int, opts ...AsyncOption) (*AsyncReporter, error) {
	if next == nil {
		return nil, errors.New("next reporter must not be nil")
	}
	if workers <= 0 {
		return nil, errors.New("workers must be > 0")
	}
	if capacity < 0 {
		return nil, errors.New("capacity must be >= 0")
	}

	r := &AsyncReporter{
		next:     next,
		pending:  queue.New(),
		capacity: capacity,
	}
	r.cond = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.run()
	}
	return r, nil
}

// Send enqueues the event and returns immediately.
func (r *AsyncReporter) Send(ev *Event) error {
	if ev == nil {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrReporterClosed
	}
	if r.capacity > 0 && r.pending.Length() >= r.capacity {
		r.mu.Unlock()
		r.dropped.Add(1)
		if r.onDrop != nil {
			r.onDrop(ev)
		}
		return nil
	}
	r.pending.Add(ev)
	r.mu.Unlock()

	r.cond.Signal()
	return nil
}

func (r *AsyncReporter) run() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for r.pending.Length() == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.pending.Length() == 0 {
			r.mu.Unlock()
			return
		}
		ev, _ := r.pending.Remove().(*Event)
		r.mu.Unlock()

		r.deliver(ev)
	}
}

func (r *AsyncReporter) deliver(ev *Event) {
	err := r.safeSend(ev)
	if err == nil {
		r.sent.Add(1)
		return
	}
	r.failed.Add(1)
	if r.onError != nil {
		r.onError(ev, err)
	}
}

func (r *AsyncReporter) safeSend(ev *Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reporter panic: %v", rec)
		}
	}()
	return r.next.Send(ev)
}

// Pending returns the number of queued events.
func (r *AsyncReporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Length()
}

// Dropped returns the number of events dropped because the queue was full.
func (r *AsyncReporter) Dropped() uint64 {
	return r.dropped.Load()
}

// Failed returns the number of events the wrapped reporter rejected.
func (r *AsyncReporter) Failed() uint64 {
	return r.failed.Load()
}

// Delivered returns the number of events the wrapped reporter accepted.
func (r *AsyncReporter) Delivered() uint64 {
	return r.sent.Load()
}

// Close stops accepting events and waits for the workers to drain the queue.
// If ctx ends first, ctx.Err() is returned and the workers finish draining in
// the background.
func (r *AsyncReporter) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewAsyncReporterFromConfig builds an AsyncReporter sized by cfg whose
// drops and failures are counted in m and logged to logger.
func NewAsyncReporterFromConfig(next Reporter, cfg config.ReporterConfig, m *Metrics, logger *slog.Logger) (*AsyncReporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = config.DefaultWorkers
	}

	return NewAsyncReporter(next, cfg.QueueSize, workers,
		WithDropHandler(func(*Event) {
			m.RecordDropped(DropQueueFull)
		}),
		WithErrorHandler(func(ev *Event, err error) {
			m.RecordReporterFailure()
			logger.Warn("async reporter send failed", "x_trace", ev.String(), "error", err)
		}),
	)
}
