package workflow

import (
	"fmt"
	"strings"
	"time"

	"collegia.org/internal/access"
)

// Action requested against a workflow instance.
type Action string

const (
	Approve Action = "approve"
	Reject  Action = "reject"
)

// Transition validates the action against the request's current stage and
// applies it in place, returning the appended history entry. The request is
// expected to be a private copy; persistence and its optimistic version
// check are the store's concern.
func Transition(req *Request, actx access.AuthContext, action Action, comment string, now time.Time) (HistoryEntry, error) {
	if req.Stage.Terminal() {
		return HistoryEntry{}, fmt.Errorf("%w: request is %s", ErrInvalidTransition, req.Stage)
	}
	if !req.Stage.Valid() {
		return HistoryEntry{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, req.Stage)
	}

	switch action {
	case Approve:
		return approve(req, actx, comment, now)
	case Reject:
		return reject(req, actx, comment, now)
	default:
		return HistoryEntry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}
}

func approve(req *Request, actx access.AuthContext, comment string, now time.Time) (HistoryEntry, error) {
	if !CanActAtStage(actx.Role, req.Stage) {
		return HistoryEntry{}, fmt.Errorf("%w: role %s cannot approve at stage %s", ErrInvalidTransition, actx.Role, req.Stage)
	}
	// A faculty-grade approver acting at the department-head step needs the
	// explicit designation; holding the hod role alone is not enough.
	if req.Stage == StageFacultyApproved && !actx.DepartmentHead {
		return HistoryEntry{}, fmt.Errorf("%w: department head designation required", ErrInvalidTransition)
	}
	next, ok := nextStage[req.Stage]
	if !ok {
		return HistoryEntry{}, fmt.Errorf("%w: no successor for stage %s", ErrInvalidTransition, req.Stage)
	}
	entry := historyEntry(actx, ActionApproved, comment, now)
	req.Stage = next
	req.History = append(req.History, entry)
	req.UpdatedAt = now
	return entry, nil
}

func reject(req *Request, actx access.AuthContext, comment string, now time.Time) (HistoryEntry, error) {
	// The comment is the only user-facing explanation; a rejection without
	// one is not permitted.
	if strings.TrimSpace(comment) == "" {
		return HistoryEntry{}, fmt.Errorf("%w: rejection requires a reason", ErrInvalidTransition)
	}
	if !canRejectAtStage(actx.Role, req.Stage) {
		return HistoryEntry{}, fmt.Errorf("%w: role %s cannot reject at stage %s", ErrInvalidTransition, actx.Role, req.Stage)
	}
	entry := historyEntry(actx, ActionRejected, comment, now)
	req.Stage = StageRejected
	req.History = append(req.History, entry)
	req.UpdatedAt = now
	return entry, nil
}

// AttachArtifact performs the narrow final step: record the issued document
// reference and move the request to issued. Only valid at the pre-issuance
// approved stage and with a non-empty artifact reference.
func AttachArtifact(req *Request, actx access.AuthContext, artifactURL string, now time.Time) (HistoryEntry, error) {
	artifactURL = strings.TrimSpace(artifactURL)
	if artifactURL == "" {
		return HistoryEntry{}, fmt.Errorf("%w: artifact reference is required", ErrInvalidTransition)
	}
	if req.Stage != StagePrincipalApproved {
		return HistoryEntry{}, fmt.Errorf("%w: artifact can only be attached at stage %s", ErrInvalidTransition, StagePrincipalApproved)
	}
	if !CanActAtStage(actx.Role, req.Stage) {
		return HistoryEntry{}, fmt.Errorf("%w: role %s cannot issue", ErrInvalidTransition, actx.Role)
	}
	entry := historyEntry(actx, ActionIssued, "", now)
	req.Stage = StageIssued
	req.ArtifactURL = artifactURL
	req.History = append(req.History, entry)
	req.UpdatedAt = now
	return entry, nil
}

func historyEntry(actx access.AuthContext, action, comment string, now time.Time) HistoryEntry {
	return HistoryEntry{
		ActorID:   actx.SubjectID,
		ActorName: actx.DisplayName,
		Role:      actx.Role,
		Action:    action,
		Comment:   strings.TrimSpace(comment),
		At:        now,
	}
}
