package access

import (
	"context"
	"errors"

	"collegia.org/internal/audit"
	"collegia.org/internal/obs"
)

// Guard decides whether a caller may touch a resource belonging to a given
// organizational unit. It tolerates the historical data-quality problem of
// unit references stored as opaque ids in some records and display names in
// others: equality is decided by normalized comparison across every
// representation pair, resolving through the unit directory where needed.
// When a name resolves ambiguously the Guard denies and records the
// ambiguity, never guesses.
type Guard struct {
	dir Directory
	rec *audit.Recorder
}

// NewGuard constructs a Guard. The recorder is optional; without it
// ambiguities are still denied, just not audited.
func NewGuard(dir Directory, rec *audit.Recorder) (*Guard, error) {
	if dir == nil {
		return nil, errors.New("access: unit directory is required")
	}
	return &Guard{dir: dir, rec: rec}, nil
}

// CanAccess reports whether the caller may access a resource tagged with
// target. Admin bypasses isolation unconditionally; this is a deliberate,
// documented escalation path kept as a distinct early return so the branch
// stays auditable.
func (g *Guard) CanAccess(ctx context.Context, actx AuthContext, target *UnitRef) bool {
	if actx.Elevated {
		obs.IncAuthzDecision("isolation", true)
		return true
	}
	allowed := g.sameUnitOrDeny(ctx, actx, target)
	obs.IncAuthzDecision("isolation", allowed)
	return allowed
}

// CanAccessWorkflow is CanAccess for approval-workflow resources, where the
// principal is globally scoped for read and approve operations. One policy
// decision, encoded here once instead of per endpoint.
func (g *Guard) CanAccessWorkflow(ctx context.Context, actx AuthContext, target *UnitRef) bool {
	if actx.Elevated || actx.Role == RolePrincipal {
		obs.IncAuthzDecision("isolation", true)
		return true
	}
	allowed := g.sameUnitOrDeny(ctx, actx, target)
	obs.IncAuthzDecision("isolation", allowed)
	return allowed
}

func (g *Guard) sameUnitOrDeny(ctx context.Context, actx AuthContext, target *UnitRef) bool {
	// Fail closed: isolation cannot be verified without both sides.
	if target.IsZero() || actx.Unit.IsZero() {
		return false
	}
	match, err := g.sameUnit(ctx, actx.Unit, target)
	if err != nil {
		if errors.Is(err, ErrAmbiguousUnit) && g.rec != nil {
			g.rec.Record(ctx, audit.Event{
				ActorID:      actx.SubjectID,
				ActorName:    actx.DisplayName,
				ActorRole:    string(actx.Role),
				ActorUnit:    actx.Unit.String(),
				Action:       "access.unit_ambiguous",
				ResourceType: "unit",
				ResourceID:   target.String(),
				Payload: map[string]any{
					"caller_unit": actx.Unit,
					"target_unit": target,
				},
				Outcome: audit.OutcomeFailure,
				Error:   err.Error(),
			})
		}
		return false
	}
	return match
}

// sameUnit compares two unit references across representations:
// id-vs-id, id-vs-name (through the directory) and name-vs-name (normalized).
// It returns false only when every applicable comparison fails.
func (g *Guard) sameUnit(ctx context.Context, a, b *UnitRef) (bool, error) {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID, nil
	}

	// Resolve whichever sides are known to the directory so that an opaque
	// id and a display name for the same unit compare equal.
	aID, aName, err := g.resolve(ctx, a)
	if err != nil {
		return false, err
	}
	bID, bName, err := g.resolve(ctx, b)
	if err != nil {
		return false, err
	}

	if aID != "" && bID != "" {
		return aID == bID, nil
	}
	if aName != "" && bName != "" {
		return normalizeUnitName(aName) == normalizeUnitName(bName), nil
	}
	return false, nil
}

// resolve fills in the missing half of a reference via the directory. A
// reference the directory does not know keeps whatever representation it
// has; comparison then falls back to same-representation equality only.
func (g *Guard) resolve(ctx context.Context, ref *UnitRef) (id, name string, err error) {
	id, name = ref.ID, ref.Name
	switch {
	case id != "" && name == "":
		unit, err := g.dir.UnitByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return id, "", nil
			}
			return "", "", err
		}
		return unit.ID, unit.Name, nil
	case id == "" && name != "":
		unit, err := g.dir.UnitByName(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return "", name, nil
			}
			return "", "", err
		}
		return unit.ID, unit.Name, nil
	default:
		return id, name, nil
	}
}
