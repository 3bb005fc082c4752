package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"collegia.org/internal/fees"
)

func openAccount(t *testing.T, f *fixture, studentID string) {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/fees/accounts", f.tokens["admin"], map[string]any{
		"student_id": studentID,
		"unit":       f.unit.ID,
		"term":       "2026-autumn",
		"currency":   "INR",
		"amount":     50_000,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("open account: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func payWithKey(t *testing.T, f *fixture, token, studentID, idemKey string) fees.Payment {
	t.Helper()
	raw, _ := json.Marshal(map[string]any{
		"student_id": studentID,
		"term":       "2026-autumn",
		"currency":   "INR",
		"amount":     20_000,
		"reference":  "upi-123",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/fees/payments", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("payment: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decodeBody[fees.Payment](t, rr)
}

func TestFeeAccountLifecycle(t *testing.T) {
	f := newFixture(t)
	studentID := f.ids["student"]
	openAccount(t, f, studentID)

	// Duplicate account for the same term conflicts.
	rr := f.do(t, http.MethodPost, "/v1/fees/accounts", f.tokens["admin"], map[string]any{
		"student_id": studentID,
		"term":       "2026-autumn",
		"currency":   "INR",
		"amount":     50_000,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate account: expected 409, got %d", rr.Code)
	}

	// Students cannot open accounts.
	rr = f.do(t, http.MethodPost, "/v1/fees/accounts", f.tokens["student"], map[string]any{
		"student_id": studentID,
		"term":       "2027-spring",
		"currency":   "INR",
		"amount":     50_000,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("student open: expected 403, got %d", rr.Code)
	}

	// The student reads their own balance.
	rr = f.do(t, http.MethodGet, "/v1/fees/accounts?student_id="+studentID+"&term=2026-autumn", f.tokens["student"], nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read own account: expected 200, got %d", rr.Code)
	}
	acc := decodeBody[fees.Account](t, rr)
	if acc.Charged != 50_000 {
		t.Fatalf("charged = %d", acc.Charged)
	}

	// But not someone else's.
	rr = f.do(t, http.MethodGet, "/v1/fees/accounts?student_id=other&term=2026-autumn", f.tokens["student"], nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("read foreign account: expected 403, got %d", rr.Code)
	}
}

func TestFeePaymentIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	studentID := f.ids["student"]
	openAccount(t, f, studentID)

	first := payWithKey(t, f, f.tokens["student"], studentID, "gw-cb-1")
	replay := payWithKey(t, f, f.tokens["student"], studentID, "gw-cb-1")
	if first.ID != replay.ID || first.Sequence != replay.Sequence {
		t.Fatalf("replay must return the original payment: %+v vs %+v", first, replay)
	}

	rr := f.do(t, http.MethodGet, "/v1/fees/accounts?student_id="+studentID+"&term=2026-autumn", f.tokens["admin"], nil)
	acc := decodeBody[fees.Account](t, rr)
	if acc.Paid != 20_000 {
		t.Fatalf("paid = %d, want 20000", acc.Paid)
	}
}

func TestFeePaymentIsolation(t *testing.T) {
	f := newFixture(t)
	openAccount(t, f, "someone-else")

	// A student cannot pay into another student's account.
	raw, _ := json.Marshal(map[string]any{
		"student_id": "someone-else",
		"term":       "2026-autumn",
		"currency":   "INR",
		"amount":     1_000,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/fees/payments", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+f.tokens["student"])
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	// Admins record payments on behalf of the cash desk.
	_ = payWithKey(t, f, f.tokens["admin"], "someone-else", "")

	// Faculty have no fee grant at all.
	req = httptest.NewRequest(http.MethodPost, "/v1/fees/payments", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+f.tokens["faculty"])
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("faculty payment: expected 403, got %d", rr.Code)
	}
}

func TestFeePaymentOverpaymentRejected(t *testing.T) {
	f := newFixture(t)
	studentID := f.ids["student"]
	openAccount(t, f, studentID)

	rr := f.do(t, http.MethodPost, "/v1/fees/payments", f.tokens["student"], map[string]any{
		"student_id": studentID,
		"term":       "2026-autumn",
		"currency":   "INR",
		"amount":     999_999,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("overpayment: expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestFeePaymentListing(t *testing.T) {
	f := newFixture(t)
	studentID := f.ids["student"]
	openAccount(t, f, studentID)
	payWithKey(t, f, f.tokens["student"], studentID, "")

	rr := f.do(t, http.MethodGet, "/v1/fees/payments", f.tokens["student"], nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	body := decodeBody[struct {
		Payments []fees.Payment `json:"payments"`
		LastSeq  uint64         `json:"last_seq"`
	}](t, rr)
	if len(body.Payments) != 1 || body.LastSeq != 1 {
		t.Fatalf("unexpected listing %+v", body)
	}
}
