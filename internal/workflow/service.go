package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
	"collegia.org/internal/obs"
)

// Service runs certificate requests through the authorization pipeline and
// the stage machine. Every resource operation passes the same two gates in
// the same order: role-level permission table first, then department
// isolation. Every mutating operation lands in the audit log regardless of
// outcome.
type Service struct {
	store Store
	guard *access.Guard
	rec   *audit.Recorder
	now   func() time.Time
}

// NewService constructs a workflow Service.
func NewService(store Store, guard *access.Guard, rec *audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if guard == nil {
		return nil, errors.New("workflow: isolation guard is required")
	}
	return &Service{store: store, guard: guard, rec: rec, now: time.Now}, nil
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Submit creates a new request at pending, snapshotting the requester's
// unit. History records stage transitions only, so a fresh request starts
// with an empty trail; submission itself is captured by CreatedAt and the
// audit log. Rejection elsewhere is terminal; resubmission comes back
// through here as a fresh instance.
func (s *Service) Submit(ctx context.Context, actx access.AuthContext, kind, reason string) (*Request, error) {
	if !s.allow(actx.Role, access.ActionCreate) {
		return nil, fmt.Errorf("%w: role %s cannot request certificates", access.ErrUnauthorized, actx.Role)
	}
	kind = strings.TrimSpace(strings.ToLower(kind))
	if !validKind(kind) {
		return nil, fmt.Errorf("%w: unknown certificate kind %q", ErrInvalidInput, kind)
	}
	if actx.Unit.IsZero() {
		return nil, fmt.Errorf("%w: requester has no department", ErrInvalidInput)
	}
	now := s.now().UTC()
	unit := *actx.Unit
	req := &Request{
		RequesterID: actx.SubjectID,
		Kind:        kind,
		Reason:      strings.TrimSpace(reason),
		Unit:        &unit,
		Stage:       StagePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		s.audit(ctx, actx, "certificate.submit", "", nil, err)
		return nil, err
	}
	s.audit(ctx, actx, "certificate.submit", req.ID, map[string]any{"kind": kind, "unit": req.Unit.String()}, nil)
	return req, nil
}

// Get loads a request subject to both authorization gates. The requester may
// always read their own request.
func (s *Service) Get(ctx context.Context, actx access.AuthContext, id string) (*Request, error) {
	if !s.allow(actx.Role, access.ActionRead) {
		return nil, fmt.Errorf("%w: role %s cannot read certificate requests", access.ErrUnauthorized, actx.Role)
	}
	req, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actx.SubjectID && !s.guard.CanAccessWorkflow(ctx, actx, req.Unit) {
		return nil, fmt.Errorf("%w: request %s is outside caller's department", access.ErrForbidden, id)
	}
	return req, nil
}

// ListForUnit returns requests visible to the caller within a unit.
func (s *Service) ListForUnit(ctx context.Context, actx access.AuthContext, unit string, limit int) ([]*Request, error) {
	if !s.allow(actx.Role, access.ActionRead) {
		return nil, fmt.Errorf("%w: role %s cannot read certificate requests", access.ErrUnauthorized, actx.Role)
	}
	if !s.guard.CanAccessWorkflow(ctx, actx, access.UnitByID(unit)) &&
		!s.guard.CanAccessWorkflow(ctx, actx, access.UnitByName(unit)) {
		return nil, fmt.Errorf("%w: unit %s is outside caller's department", access.ErrForbidden, unit)
	}
	return s.store.ListByUnit(ctx, unit, limit)
}

// Approve advances the request one stage.
func (s *Service) Approve(ctx context.Context, actx access.AuthContext, id, comment string) (*Request, error) {
	return s.transition(ctx, actx, id, Approve, comment)
}

// Reject terminates the request with a mandatory reason.
func (s *Service) Reject(ctx context.Context, actx access.AuthContext, id, comment string) (*Request, error) {
	return s.transition(ctx, actx, id, Reject, comment)
}

func (s *Service) transition(ctx context.Context, actx access.AuthContext, id string, action Action, comment string) (*Request, error) {
	permAction := access.ActionApprove
	if action == Reject {
		permAction = access.ActionReject
	}
	auditAction := "certificate." + string(action)

	if !s.allow(actx.Role, permAction) {
		err := fmt.Errorf("%w: role %s cannot %s certificate requests", access.ErrUnauthorized, actx.Role, action)
		s.audit(ctx, actx, auditAction, id, nil, err)
		return nil, err
	}
	req, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanAccessWorkflow(ctx, actx, req.Unit) {
		err := fmt.Errorf("%w: request %s is outside caller's department", access.ErrForbidden, id)
		s.audit(ctx, actx, auditAction, id, nil, err)
		return nil, err
	}

	fromStage := req.Stage
	entry, err := Transition(req, actx, action, comment, s.now().UTC())
	if err != nil {
		obs.IncTransition(string(action), "invalid")
		s.audit(ctx, actx, auditAction, id, map[string]any{"stage": fromStage}, err)
		return nil, err
	}
	if err := s.store.Update(ctx, req, req.Version); err != nil {
		outcome := "error"
		if errors.Is(err, ErrConcurrentModification) {
			outcome = "conflict"
		}
		obs.IncTransition(string(action), outcome)
		s.audit(ctx, actx, auditAction, id, map[string]any{"stage": fromStage}, err)
		return nil, err
	}
	obs.IncTransition(string(action), "applied")
	s.audit(ctx, actx, auditAction, id, map[string]any{
		"from_stage": fromStage,
		"to_stage":   req.Stage,
		"comment":    entry.Comment,
	}, nil)
	return req, nil
}

// Issue attaches the issuance artifact and closes the request.
func (s *Service) Issue(ctx context.Context, actx access.AuthContext, id, artifactURL string) (*Request, error) {
	if !s.allow(actx.Role, access.ActionIssue) {
		err := fmt.Errorf("%w: role %s cannot issue certificates", access.ErrUnauthorized, actx.Role)
		s.audit(ctx, actx, "certificate.issue", id, nil, err)
		return nil, err
	}
	req, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanAccessWorkflow(ctx, actx, req.Unit) {
		err := fmt.Errorf("%w: request %s is outside caller's department", access.ErrForbidden, id)
		s.audit(ctx, actx, "certificate.issue", id, nil, err)
		return nil, err
	}
	if _, err := AttachArtifact(req, actx, artifactURL, s.now().UTC()); err != nil {
		obs.IncTransition("issue", "invalid")
		s.audit(ctx, actx, "certificate.issue", id, map[string]any{"stage": req.Stage}, err)
		return nil, err
	}
	if err := s.store.Update(ctx, req, req.Version); err != nil {
		outcome := "error"
		if errors.Is(err, ErrConcurrentModification) {
			outcome = "conflict"
		}
		obs.IncTransition("issue", outcome)
		s.audit(ctx, actx, "certificate.issue", id, nil, err)
		return nil, err
	}
	obs.IncTransition("issue", "applied")
	s.audit(ctx, actx, "certificate.issue", id, map[string]any{"artifact_url": req.ArtifactURL}, nil)
	return req, nil
}

func (s *Service) allow(role access.Role, action access.Action) bool {
	ok := access.Allows(role, access.ResourceCertificate, action)
	obs.IncAuthzDecision("permission", ok)
	return ok
}

func (s *Service) audit(ctx context.Context, actx access.AuthContext, action, resourceID string, payload map[string]any, opErr error) {
	ev := audit.Event{
		ActorID:      actx.SubjectID,
		ActorName:    actx.DisplayName,
		ActorRole:    string(actx.Role),
		ActorUnit:    actx.Unit.String(),
		Action:       action,
		ResourceType: string(access.ResourceCertificate),
		ResourceID:   resourceID,
		Payload:      payload,
		Outcome:      audit.OutcomeSuccess,
	}
	if opErr != nil {
		ev.Outcome = audit.OutcomeFailure
		ev.Error = opErr.Error()
	}
	s.rec.Record(ctx, ev)
}
