package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"collegia.org/internal/audit"
)

// AuditSink appends audit events to the audit_events table. Rows are never
// updated or deleted here; retention is an operational concern.
type AuditSink struct {
	store *Store
}

var _ audit.Sink = (*AuditSink)(nil)

// NewAuditSink constructs the sink.
func NewAuditSink(store *Store) *AuditSink {
	return &AuditSink{store: store}
}

func (s *AuditSink) Append(ctx context.Context, ev audit.Event) error {
	if s.store == nil || s.store.db == nil {
		return errors.New("database connection unavailable")
	}
	payload := []byte("{}")
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payload = data
	}
	_, err := s.store.db.ExecContext(ctx, `
		insert into audit_events
			(id, occurred_at, actor_id, actor_name, actor_role, actor_unit,
			 action, resource_type, resource_id, payload, outcome, error_text)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, nullif($12, ''))
	`, ev.ID, ev.OccurredAt, ev.ActorID, ev.ActorName, ev.ActorRole, ev.ActorUnit,
		ev.Action, ev.ResourceType, ev.ResourceID, payload, ev.Outcome, ev.Error)
	return err
}
