package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"collegia.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu   sync.RWMutex
	reqs map[string]*Request
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty request store.
func NewInMemory() *InMemory {
	return &InMemory{reqs: make(map[string]*Request)}
}

func (s *InMemory) Create(ctx context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = ids.New()
	}
	if _, exists := s.reqs[req.ID]; exists {
		return fmt.Errorf("%w: request %s exists", ErrInvalidInput, req.ID)
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
		req.UpdatedAt = now
	}
	req.Version = 1
	s.reqs[req.ID] = req.Clone()
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.reqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req.Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, req *Request, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.reqs[req.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: request %s at version %d, expected %d",
			ErrConcurrentModification, req.ID, current.Version, expectedVersion)
	}
	stored := req.Clone()
	stored.Version = expectedVersion + 1
	s.reqs[req.ID] = stored
	req.Version = stored.Version
	return nil
}

func (s *InMemory) ListByUnit(ctx context.Context, unit string, limit int) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.reqs {
		if req.Unit != nil && (req.Unit.ID == unit || req.Unit.Name == unit) {
			out = append(out, req.Clone())
		}
	}
	sortRequests(out)
	return clip(out, limit), nil
}

func (s *InMemory) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.reqs {
		if req.RequesterID == requesterID {
			out = append(out, req.Clone())
		}
	}
	sortRequests(out)
	return clip(out, limit), nil
}

func sortRequests(reqs []*Request) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
}

func clip(reqs []*Request, limit int) []*Request {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if len(reqs) > limit {
		return reqs[:limit]
	}
	return reqs
}
