package feed

import (
	"context"
	"sync"

	"collegia.org/internal/audit"
)

// Feed fans audit events out to all active subscribers (the admin
// dashboard's SSE clients). Slow subscribers drop events rather than block
// the publisher.
type Feed struct {
	mu   sync.RWMutex
	subs map[int]chan audit.Event
	next int
}

// New initialises an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[int]chan audit.Event)}
}

// Sink returns an audit sink that publishes every appended event to the
// feed. Meant to be combined with the primary sink via audit.MultiSink.
func (f *Feed) Sink() audit.Sink {
	return audit.SinkFunc(func(_ context.Context, ev audit.Event) error {
		f.Publish(ev)
		return nil
	})
}

// Publish delivers the event to every subscriber without blocking.
func (f *Feed) Publish(ev audit.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new consumer. The returned cancel function must be
// called when the consumer goes away.
func (f *Feed) Subscribe() (<-chan audit.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan audit.Event, 16)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if existing, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Subscribers reports the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
