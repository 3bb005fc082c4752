package audit

import (
	"context"
	"encoding/json"
	"time"

	"collegia.org/internal/obs"
)

// LogSink writes events as JSON lines through the shared service logger.
// It is the default sink when no database is configured.
type LogSink struct{}

func (LogSink) Append(_ context.Context, ev Event) error {
	entry := map[string]any{
		"ts":   ev.OccurredAt.Format(time.RFC3339Nano),
		"type": "audit",
		"id":   ev.ID,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	entry["event"] = json.RawMessage(data)
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(line))
	return nil
}
