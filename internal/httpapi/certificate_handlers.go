package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type createCertificateRequest struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type decisionRequest struct {
	Comment string `json:"comment"`
}

type artifactRequest struct {
	ArtifactURL string `json:"artifact_url"`
}

func (a *API) handleCertificates(w http.ResponseWriter, r *http.Request) {
	if a.workflow == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createCertificateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := a.workflow.Submit(r.Context(), actx, req.Kind, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		w.Header().Set("Location", "/v1/certificates/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		unit := strings.TrimSpace(r.URL.Query().Get("unit"))
		if unit == "" {
			writeError(w, http.StatusBadRequest, "unit query parameter is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		reqs, err := a.workflow.ListForUnit(r.Context(), actx, unit, limit)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

func (a *API) handleCertificateScoped(w http.ResponseWriter, r *http.Request) {
	if a.workflow == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/certificates/"), "/")
	if path == "" {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		req, err := a.workflow.Get(r.Context(), actx, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	switch parts[1] {
	case "approve":
		var req decisionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.workflow.Approve(r.Context(), actx, id, req.Comment)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case "reject":
		var req decisionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.workflow.Reject(r.Context(), actx, id, req.Comment)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case "artifact":
		var req artifactRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.workflow.Issue(r.Context(), actx, id, req.ArtifactURL)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}
