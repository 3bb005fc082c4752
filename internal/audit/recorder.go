package audit

import (
	"context"
	"sync"
	"time"

	"collegia.org/internal/obs"
)

const defaultBuffer = 1024

// Recorder accepts audit events from mutating operations and dispatches them
// to the configured sink. Recording is fire-and-forget: a sink failure is
// counted and logged, never surfaced to the operation that produced the
// event. A single dispatch goroutine drains the queue, so events for the
// same resource are appended in the order they were recorded.
type Recorder struct {
	sink Sink
	now  func() time.Time

	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBuffer overrides the queue depth.
func WithBuffer(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Event, n)
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder starts the dispatch loop over the given sink.
func NewRecorder(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:  sink,
		now:   time.Now,
		queue: make(chan Event, defaultBuffer),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.dispatch()
	return r
}

// Record enqueues the event. When the queue is full the call blocks until
// the dispatcher catches up; every event goes through the single queue, so
// events for one resource always land in recorded order. After Close the
// append happens synchronously on the caller's goroutine. Either way the
// caller never sees an error and nothing is dropped.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	ev = normalize(ev, r.now)
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		r.append(ev)
		return
	}
	r.queue <- ev
	r.mu.RUnlock()
}

// Close drains outstanding events and stops the dispatch loop. Safe to call
// more than once and concurrently with Record.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) dispatch() {
	defer close(r.done)
	for ev := range r.queue {
		r.append(ev)
	}
}

func (r *Recorder) append(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.Append(ctx, ev); err != nil {
		obs.IncAuditFailure()
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit append failed",
			"event": ev.Action,
			"error": err.Error(),
		})
		return
	}
	obs.IncAuditEvent(ev.Outcome)
}
