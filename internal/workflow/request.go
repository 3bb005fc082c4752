package workflow

import (
	"errors"
	"time"

	"collegia.org/internal/access"
)

var (
	ErrNotFound               = errors.New("workflow: not found")
	ErrInvalidInput           = errors.New("workflow: invalid input")
	ErrInvalidTransition      = errors.New("workflow: invalid transition")
	ErrConcurrentModification = errors.New("workflow: concurrent modification")
)

// Certificate kinds a student can request.
const (
	KindBonafide = "bonafide"
	KindLeaving  = "leaving"
	KindConduct  = "conduct"
)

// History entry actions.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
	ActionIssued   = "issued"
)

// HistoryEntry is one immutable line of the request's sign-off trail.
// Exactly one entry is appended per stage transition, never edited or
// removed; together they are the durable proof of who approved what.
type HistoryEntry struct {
	ActorID   string      `json:"actor_id"`
	ActorName string      `json:"actor_name,omitempty"`
	Role      access.Role `json:"role"`
	Action    string      `json:"action"`
	Comment   string      `json:"comment,omitempty"`
	At        time.Time   `json:"at"`
}

// Request is a certificate request moving through the approval chain. Unit
// is snapshotted at creation and used for isolation checks even if the
// requester later changes department.
type Request struct {
	ID          string          `json:"id"`
	RequesterID string          `json:"requester_id"`
	Kind        string          `json:"kind"`
	Reason      string          `json:"reason,omitempty"`
	Unit        *access.UnitRef `json:"unit,omitempty"`
	Stage       Stage           `json:"stage"`
	ArtifactURL string          `json:"artifact_url,omitempty"`
	History     []HistoryEntry  `json:"history"`
	// Version guards check-then-mutate sequences: a store update carries
	// the version the caller read, and loses cleanly if it has moved.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so machine transitions never alias store state.
func (r *Request) Clone() *Request {
	cp := *r
	cp.History = make([]HistoryEntry, len(r.History))
	copy(cp.History, r.History)
	if r.Unit != nil {
		unit := *r.Unit
		cp.Unit = &unit
	}
	return &cp
}

func validKind(kind string) bool {
	switch kind {
	case KindBonafide, KindLeaving, KindConduct:
		return true
	}
	return false
}
