package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Identity is a user record as persisted by the identity store.
type Identity struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Unit         *UnitRef  `json:"unit,omitempty"`
	Status       string    `json:"status"`
	// Approved gates the faculty role: an unapproved faculty account has no
	// capability at all, it does not degrade to a lesser role.
	Approved       bool      `json:"approved"`
	DepartmentHead bool      `json:"department_head"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IdentityStore describes persistence operations for user identities.
type IdentityStore interface {
	Create(ctx context.Context, id *Identity) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	ListByUnit(ctx context.Context, unitID string) ([]*Identity, error)
	SetApproval(ctx context.Context, id string, approved bool) error
}

// AuthContext is the request-scoped authorization view of a subject. It is
// rebuilt from the identity store on every inbound action and never cached
// across actions, because role and approval state can change between them.
type AuthContext struct {
	SubjectID      string
	Role           Role
	Unit           *UnitRef
	DisplayName    string
	DepartmentHead bool
	// Elevated is true for roles that bypass department isolation outright.
	Elevated bool
}

// Resolver builds AuthContexts from subject identifiers.
type Resolver struct {
	store IdentityStore
}

// NewResolver constructs a Resolver.
func NewResolver(store IdentityStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("access: identity store is required")
	}
	return &Resolver{store: store}, nil
}

// Resolve loads the caller's authorization context. Unknown, disabled and
// unapproved-faculty subjects all fail identically as unauthenticated, so a
// gated account cannot be probed apart from a missing one.
func (r *Resolver) Resolve(ctx context.Context, subjectID string) (AuthContext, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return AuthContext{}, fmt.Errorf("%w: empty subject", ErrUnauthenticated)
	}
	id, err := r.store.Find(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthContext{}, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return AuthContext{}, err
	}
	if id.Status != StatusActive {
		return AuthContext{}, fmt.Errorf("%w: subject disabled", ErrUnauthenticated)
	}
	if id.Role == RoleFaculty && !id.Approved {
		return AuthContext{}, fmt.Errorf("%w: subject not approved", ErrUnauthenticated)
	}
	if !id.Role.Valid() {
		return AuthContext{}, fmt.Errorf("%w: identity %s has unknown role %q", ErrInvalidInput, id.ID, id.Role)
	}
	return AuthContext{
		SubjectID:      id.ID,
		Role:           id.Role,
		Unit:           id.Unit,
		DisplayName:    id.DisplayName,
		DepartmentHead: id.DepartmentHead,
		Elevated:       id.Role == RoleAdmin,
	}, nil
}
