package workflow

import "context"

// Store persists certificate requests. Update enforces per-resource
// transition exclusivity: it applies only when the stored version equals
// expectedVersion and fails with ErrConcurrentModification otherwise, so of
// two racing transitions exactly one lands.
type Store interface {
	Create(ctx context.Context, req *Request) error
	Find(ctx context.Context, id string) (*Request, error)
	Update(ctx context.Context, req *Request, expectedVersion int64) error
	ListByUnit(ctx context.Context, unit string, limit int) ([]*Request, error)
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]*Request, error)
}
