package access

import (
	"context"
	"strings"
	"time"
)

// Unit is a department or division record from the directory.
type Unit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnitRef points at an organizational unit either by opaque identifier or by
// display name. Historical records carry one or the other interchangeably, so
// every membership comparison has to go through Guard rather than plain
// string equality.
type UnitRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// UnitByID builds a reference from an opaque identifier.
func UnitByID(id string) *UnitRef {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &UnitRef{ID: id}
}

// UnitByName builds a reference from a display name.
func UnitByName(name string) *UnitRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &UnitRef{Name: name}
}

// IsZero reports whether the reference carries neither an id nor a name.
func (u *UnitRef) IsZero() bool {
	return u == nil || (strings.TrimSpace(u.ID) == "" && strings.TrimSpace(u.Name) == "")
}

// String renders the reference for logs and audit payloads.
func (u *UnitRef) String() string {
	if u == nil {
		return ""
	}
	if u.ID != "" {
		return u.ID
	}
	return u.Name
}

// normalizeUnitName lower-cases and collapses internal whitespace. It never
// abbreviates: two distinct units must never normalize to the same value.
func normalizeUnitName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Directory resolves unit references against the department registry.
type Directory interface {
	// UnitByID returns the unit with the given opaque identifier.
	UnitByID(ctx context.Context, id string) (Unit, error)
	// UnitByName returns the unit whose display name matches after
	// normalization. Returns ErrAmbiguousUnit when more than one unit
	// normalizes to the same name.
	UnitByName(ctx context.Context, name string) (Unit, error)
}

// DirectoryStore extends Directory with the administrative surface.
type DirectoryStore interface {
	Directory
	CreateUnit(ctx context.Context, unit *Unit) error
	ListUnits(ctx context.Context) ([]Unit, error)
}
