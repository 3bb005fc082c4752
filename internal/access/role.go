package access

import (
	"fmt"
	"strings"
)

// Role is one of the five portal roles, totally ordered by seniority.
type Role string

const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleHOD       Role = "hod"
	RolePrincipal Role = "principal"
	RoleAdmin     Role = "admin"
)

// roleRank encodes the seniority order student < faculty < hod < principal < admin.
var roleRank = map[Role]int{
	RoleStudent:   1,
	RoleFaculty:   2,
	RoleHOD:       3,
	RolePrincipal: 4,
	RoleAdmin:     5,
}

// ParseRole normalizes a raw role value.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return r, nil
}

// Valid reports whether the role is one of the five known values.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Compare returns -1, 0 or +1 ordering a against b by seniority.
// An unknown role here means identity resolution was bypassed upstream;
// that is a programming defect, not a recoverable condition.
func Compare(a, b Role) int {
	ra, ok := roleRank[a]
	if !ok {
		panic(fmt.Sprintf("access: unknown role %q", a))
	}
	rb, ok := roleRank[b]
	if !ok {
		panic(fmt.Sprintf("access: unknown role %q", b))
	}
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is at least as senior as threshold.
func (r Role) AtLeast(threshold Role) bool {
	return Compare(r, threshold) >= 0
}
