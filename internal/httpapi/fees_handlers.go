package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
	"collegia.org/internal/fees"
	"collegia.org/internal/obs"
)

type openAccountRequest struct {
	StudentID string `json:"student_id"`
	Unit      string `json:"unit"`
	Term      string `json:"term"`
	Currency  string `json:"currency"`
	Amount    int64  `json:"amount"`
}

func (a *API) handleFeeAccounts(w http.ResponseWriter, r *http.Request) {
	if a.fees == nil {
		writeError(w, http.StatusServiceUnavailable, "fee service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !allow(actx, access.ResourceFee, access.ActionCreate) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		var req openAccountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.StudentID) == "" || strings.TrimSpace(req.Term) == "" {
			writeError(w, http.StatusBadRequest, "student_id and term are required")
			return
		}
		acc, err := a.fees.OpenAccount(r.Context(), req.StudentID, req.Unit, req.Term, fees.Money{
			Currency: req.Currency,
			Amount:   req.Amount,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		a.audit(r, actx, "fee.account_open", "fee", req.StudentID+"/"+req.Term, audit.OutcomeSuccess, map[string]any{
			"term":    req.Term,
			"charged": req.Amount,
		})
		writeJSON(w, http.StatusCreated, acc)
	case http.MethodGet:
		if !allow(actx, access.ResourceFee, access.ActionRead) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
		term := strings.TrimSpace(r.URL.Query().Get("term"))
		if studentID == "" || term == "" {
			writeError(w, http.StatusBadRequest, "student_id and term query parameters are required")
			return
		}
		if actx.Role == access.RoleStudent && studentID != actx.SubjectID {
			obs.IncAuthzDecision("isolation", false)
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		acc, err := a.fees.GetAccount(r.Context(), studentID, term)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

type recordPaymentRequest struct {
	StudentID string `json:"student_id"`
	Term      string `json:"term"`
	Currency  string `json:"currency"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

func (a *API) handleFeePayments(w http.ResponseWriter, r *http.Request) {
	if a.fees == nil {
		writeError(w, http.StatusServiceUnavailable, "fee service unavailable")
		return
	}
	actx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		paysOwn := allow(actx, access.ResourceFee, access.ActionPay)
		records := actx.Elevated && access.Allows(actx.Role, access.ResourceFee, access.ActionUpdate)
		if !paysOwn && !records {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		var req recordPaymentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if actx.Role == access.RoleStudent {
			// Students may only pay into their own account.
			if req.StudentID == "" {
				req.StudentID = actx.SubjectID
			}
			if req.StudentID != actx.SubjectID {
				obs.IncAuthzDecision("isolation", false)
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
		}
		idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		p, err := a.fees.RecordPayment(r.Context(), req.StudentID, req.Term, fees.Money{
			Currency: req.Currency,
			Amount:   req.Amount,
		}, req.Reference, idemKey)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		a.audit(r, actx, "fee.payment", "fee", p.ID, audit.OutcomeSuccess, map[string]any{
			"student_id": p.StudentID,
			"term":       p.Term,
			"amount":     p.Amount,
		})
		writeJSON(w, http.StatusCreated, p)
	case http.MethodGet:
		if !allow(actx, access.ResourceFee, access.ActionRead) {
			writeError(w, http.StatusForbidden, "access denied")
			return
		}
		studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
		if actx.Role == access.RoleStudent {
			if studentID == "" {
				studentID = actx.SubjectID
			}
			if studentID != actx.SubjectID {
				obs.IncAuthzDecision("isolation", false)
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		afterSeq, _ := strconv.ParseUint(r.URL.Query().Get("after_seq"), 10, 64)
		payments, last, err := a.fees.ListPayments(r.Context(), studentID, limit, afterSeq)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"payments": payments,
			"last_seq": last,
		})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}
