package workflow

import (
	"collegia.org/internal/access"
)

// Stage is a point in the sequential sign-off chain a certificate request
// passes through. Forward-only; rejected is a terminal side branch.
type Stage string

const (
	StagePending           Stage = "pending"
	StageFacultyApproved   Stage = "faculty_approved"
	StageHODApproved       Stage = "hod_approved"
	StagePrincipalApproved Stage = "principal_approved"
	StageIssued            Stage = "issued"
	StageRejected          Stage = "rejected"
)

// nextStage is the fixed one-step transition map. Adding an approval level
// is a data change here plus an actingStages entry, not new branching.
var nextStage = map[Stage]Stage{
	StagePending:           StageFacultyApproved,
	StageFacultyApproved:   StageHODApproved,
	StageHODApproved:       StagePrincipalApproved,
	StagePrincipalApproved: StageIssued,
}

// actingStages lists, per role, the current-stage values that role may
// approve at. A role may hold several stages; it must never hold a stage it
// has already passed or one belonging to a more junior approver.
var actingStages = map[access.Role][]Stage{
	access.RoleFaculty:   {StagePending},
	access.RoleHOD:       {StageFacultyApproved},
	access.RolePrincipal: {StageHODApproved},
	access.RoleAdmin:     {StagePrincipalApproved},
}

// stageApprover is derived from actingStages: the most junior role entitled
// to approve at each stage. Used to let senior roles reject work stuck at a
// junior stage without being able to approve it out of order.
var stageApprover = buildStageApprovers()

func buildStageApprovers() map[Stage]access.Role {
	out := make(map[Stage]access.Role)
	for role, stages := range actingStages {
		for _, st := range stages {
			current, ok := out[st]
			if !ok || access.Compare(role, current) < 0 {
				out[st] = role
			}
		}
	}
	return out
}

// Valid reports whether s is a known stage value.
func (s Stage) Valid() bool {
	switch s {
	case StagePending, StageFacultyApproved, StageHODApproved,
		StagePrincipalApproved, StageIssued, StageRejected:
		return true
	}
	return false
}

// Terminal reports whether the stage accepts no further transitions.
func (s Stage) Terminal() bool {
	return s == StageIssued || s == StageRejected
}

// CanActAtStage reports whether the role is an approver for the given
// current stage.
func CanActAtStage(role access.Role, stage Stage) bool {
	for _, st := range actingStages[role] {
		if st == stage {
			return true
		}
	}
	return false
}

// canRejectAtStage: a request may be rejected by the stage's own approver or
// by any more senior role, from any non-terminal stage.
func canRejectAtStage(role access.Role, stage Stage) bool {
	if stage.Terminal() {
		return false
	}
	if CanActAtStage(role, stage) {
		return true
	}
	approver, ok := stageApprover[stage]
	if !ok {
		return false
	}
	return role.Valid() && role.AtLeast(approver)
}
