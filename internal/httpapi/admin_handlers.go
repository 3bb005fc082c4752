package httpapi

import (
	"net/http"
	"strings"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
	"collegia.org/internal/obs"
)

// allow runs the role-level permission gate and counts the decision.
func allow(actx access.AuthContext, resource access.Resource, action access.Action) bool {
	ok := access.Allows(actx.Role, resource, action)
	obs.IncAuthzDecision("permission", ok)
	return ok
}

type createDepartmentRequest struct {
	Name string `json:"name"`
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request) {
	if a.access == nil {
		writeError(w, http.StatusServiceUnavailable, "identity service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !allow(actx, access.ResourceDepartment, access.ActionCreate) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		var req createDepartmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		unit, err := a.access.CreateUnit(r.Context(), req.Name)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		a.audit(r, actx, "department.create", "department", unit.ID, audit.OutcomeSuccess, nil)
		writeJSON(w, http.StatusCreated, unit)
	case http.MethodGet:
		if !allow(actx, access.ResourceDepartment, access.ActionRead) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		units, err := a.access.ListUnits(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"departments": units})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

type createUserRequest struct {
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	UnitID         string `json:"unit_id"`
	DepartmentHead bool   `json:"department_head"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if a.access == nil {
		writeError(w, http.StatusServiceUnavailable, "identity service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !allow(actx, access.ResourceUser, access.ActionCreate) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id := access.Identity{
			DisplayName:    req.DisplayName,
			Email:          req.Email,
			Role:           access.Role(req.Role),
			Unit:           access.UnitByID(req.UnitID),
			DepartmentHead: req.DepartmentHead,
		}
		created, err := a.access.CreateIdentity(r.Context(), id, req.Password)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		a.audit(r, actx, "user.create", "user", created.ID, audit.OutcomeSuccess, map[string]any{
			"role": string(created.Role),
		})
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		if !allow(actx, access.ResourceUser, access.ActionRead) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		unitID := strings.TrimSpace(r.URL.Query().Get("unit"))
		if unitID == "" {
			writeError(w, http.StatusBadRequest, "unit query parameter is required")
			return
		}
		if !actx.Elevated && actx.Role != access.RolePrincipal {
			if actx.Unit == nil || actx.Unit.ID != unitID {
				obs.IncAuthzDecision("isolation", false)
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			obs.IncAuthzDecision("isolation", true)
		}
		users, err := a.access.ListByUnit(r.Context(), unitID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

type setApprovalRequest struct {
	Approved bool `json:"approved"`
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	if a.access == nil {
		writeError(w, http.StatusServiceUnavailable, "identity service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "approval" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !allow(actx, access.ResourceUser, access.ActionUpdate) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	var req setApprovalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.access.SetApproval(r.Context(), parts[0], req.Approved); err != nil {
		handleDomainError(w, err)
		return
	}
	a.audit(r, actx, "user.set_approval", "user", parts[0], audit.OutcomeSuccess, map[string]any{
		"approved": req.Approved,
	})
	writeJSON(w, http.StatusOK, map[string]any{"id": parts[0], "approved": req.Approved})
}

func (a *API) audit(r *http.Request, actx access.AuthContext, action, resourceType, resourceID, outcome string, payload map[string]any) {
	a.rec.Record(r.Context(), audit.Event{
		ActorID:      actx.SubjectID,
		ActorName:    actx.DisplayName,
		ActorRole:    string(actx.Role),
		ActorUnit:    actx.Unit.String(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Payload:      payload,
		Outcome:      outcome,
	})
}
