package httpapi

import (
	"net/http"
	"time"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	SubjectID   string `json:"subject_id"`
	Role        string `json:"role"`
}

func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.access == nil {
		writeError(w, http.StatusServiceUnavailable, "identity service unavailable")
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.access.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		a.rec.Record(r.Context(), audit.Event{
			Action:  "auth.token",
			Payload: map[string]any{"email": req.Email},
			Outcome: audit.OutcomeFailure,
			Error:   "invalid credentials",
		})
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := access.GenerateToken(id.ID, id.Role, a.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	a.rec.Record(r.Context(), audit.Event{
		ActorID:   id.ID,
		ActorName: id.DisplayName,
		ActorRole: string(id.Role),
		ActorUnit: id.Unit.String(),
		Action:    "auth.token",
		Outcome:   audit.OutcomeSuccess,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(a.tokenTTL / time.Second),
		SubjectID:   id.ID,
		Role:        string(id.Role),
	})
}
