package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service provides the administrative identity and directory operations the
// portal needs around the authorization core: registering departments and
// users, approving faculty accounts, credential login.
type Service struct {
	identities IdentityStore
	dir        DirectoryStore
}

// NewService constructs a Service.
func NewService(identities IdentityStore, dir DirectoryStore) (*Service, error) {
	if identities == nil {
		return nil, errors.New("access: identity store is required")
	}
	if dir == nil {
		return nil, errors.New("access: directory store is required")
	}
	return &Service{identities: identities, dir: dir}, nil
}

// Directory exposes the unit directory for Guard construction.
func (s *Service) Directory() Directory { return s.dir }

// CreateUnit registers a department.
func (s *Service) CreateUnit(ctx context.Context, name string) (Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Unit{}, fmt.Errorf("%w: unit name is required", ErrInvalidInput)
	}
	unit := Unit{Name: name}
	if err := s.dir.CreateUnit(ctx, &unit); err != nil {
		return Unit{}, err
	}
	return unit, nil
}

// ListUnits returns all departments.
func (s *Service) ListUnits(ctx context.Context) ([]Unit, error) {
	return s.dir.ListUnits(ctx)
}

// CreateIdentity registers a user. Faculty accounts start unapproved and
// stay inert until an admin approves them.
func (s *Service) CreateIdentity(ctx context.Context, id Identity, password string) (*Identity, error) {
	id.DisplayName = strings.TrimSpace(id.DisplayName)
	if id.DisplayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	id.Email = strings.TrimSpace(strings.ToLower(id.Email))
	if id.Email == "" || !strings.Contains(id.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	role, err := ParseRole(string(id.Role))
	if err != nil {
		return nil, err
	}
	id.Role = role
	if id.Status == "" {
		id.Status = StatusActive
	}
	if id.Status != StatusActive && id.Status != StatusDisabled {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, id.Status)
	}
	if role == RoleFaculty {
		id.Approved = false
	} else {
		id.Approved = true
	}
	if id.Unit != nil && id.Unit.ID != "" {
		if _, err := s.dir.UnitByID(ctx, id.Unit.ID); err != nil {
			return nil, fmt.Errorf("%w: unknown unit %s", ErrInvalidInput, id.Unit.ID)
		}
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	id.PasswordHash = hash
	if err := s.identities.Create(ctx, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Authenticate verifies credentials and returns the matching identity. Any
// failure collapses to ErrUnauthenticated so callers cannot distinguish a
// wrong password from a missing or gated account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrUnauthenticated
	}
	id, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if id.Status != StatusActive {
		return nil, ErrUnauthenticated
	}
	if id.Role == RoleFaculty && !id.Approved {
		return nil, ErrUnauthenticated
	}
	if err := VerifyPassword(id.PasswordHash, password); err != nil {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

// SetApproval flips the faculty approval gate.
func (s *Service) SetApproval(ctx context.Context, subjectID string, approved bool) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	return s.identities.SetApproval(ctx, subjectID, approved)
}

// ListByUnit returns the identities belonging to a department.
func (s *Service) ListByUnit(ctx context.Context, unitID string) ([]*Identity, error) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return nil, fmt.Errorf("%w: unit id is required", ErrInvalidInput)
	}
	return s.identities.ListByUnit(ctx, unitID)
}
