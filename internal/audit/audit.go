package audit

import (
	"context"
	"strings"
	"time"

	"collegia.org/internal/ids"
)

// Outcome of the action an event describes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one immutable record of a mutating action. It is independent of
// any per-resource history: retention and reporting are external concerns.
type Event struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	ActorID      string         `json:"actor_id"`
	ActorName    string         `json:"actor_name,omitempty"`
	ActorRole    string         `json:"actor_role,omitempty"`
	ActorUnit    string         `json:"actor_unit,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Outcome      string         `json:"outcome"`
	Error        string         `json:"error,omitempty"`
}

// Sink persists events. Implementations must treat entries as append-only.
type Sink interface {
	Append(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Append(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MultiSink fans an event out to every sink; the first error wins but all
// sinks are attempted.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, ev Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Append(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func normalize(ev Event, now func() time.Time) Event {
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now().UTC()
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeSuccess
	}
	ev.Action = strings.TrimSpace(ev.Action)
	return ev
}
