package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"collegia.org/internal/ids"
)

// MemoryStore is an in-process IdentityStore and DirectoryStore. It backs
// the service when no database is configured and the package tests.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]*Identity
	byEmail    map[string]string
	units      map[string]Unit
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]*Identity),
		byEmail:    make(map[string]string),
		units:      make(map[string]Unit),
	}
}

var (
	_ IdentityStore  = (*MemoryStore)(nil)
	_ DirectoryStore = (*MemoryStore)(nil)
)

func (m *MemoryStore) Create(ctx context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id.ID == "" {
		id.ID = ids.New()
	}
	if _, exists := m.identities[id.ID]; exists {
		return fmt.Errorf("%w: identity %s", ErrConflict, id.ID)
	}
	if _, exists := m.byEmail[id.Email]; exists && id.Email != "" {
		return fmt.Errorf("%w: email %s", ErrConflict, id.Email)
	}
	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now
	cp := *id
	m.identities[id.ID] = &cp
	if id.Email != "" {
		m.byEmail[id.Email] = id.ID
	}
	return nil
}

func (m *MemoryStore) Find(ctx context.Context, id string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.identities[id]
	return &cp, nil
}

func (m *MemoryStore) ListByUnit(ctx context.Context, unitID string) ([]*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Identity
	for _, rec := range m.identities {
		if rec.Unit != nil && rec.Unit.ID == unitID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SetApproval(ctx context.Context, id string, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.identities[id]
	if !ok {
		return ErrNotFound
	}
	rec.Approved = approved
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) CreateUnit(ctx context.Context, unit *Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if unit.ID == "" {
		unit.ID = ids.New()
	}
	if _, exists := m.units[unit.ID]; exists {
		return fmt.Errorf("%w: unit %s", ErrConflict, unit.ID)
	}
	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now
	m.units[unit.ID] = *unit
	return nil
}

func (m *MemoryStore) UnitByID(ctx context.Context, id string) (Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unit, ok := m.units[strings.TrimSpace(id)]
	if !ok {
		return Unit{}, ErrNotFound
	}
	return unit, nil
}

func (m *MemoryStore) UnitByName(ctx context.Context, name string) (Unit, error) {
	norm := normalizeUnitName(name)
	if norm == "" {
		return Unit{}, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		found Unit
		hits  int
	)
	for _, unit := range m.units {
		if normalizeUnitName(unit.Name) == norm {
			found = unit
			hits++
		}
	}
	switch hits {
	case 0:
		return Unit{}, ErrNotFound
	case 1:
		return found, nil
	default:
		return Unit{}, fmt.Errorf("%w: %q matches %d units", ErrAmbiguousUnit, name, hits)
	}
}

func (m *MemoryStore) ListUnits(ctx context.Context) ([]Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Unit, 0, len(m.units))
	for _, unit := range m.units {
		out = append(out, unit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
