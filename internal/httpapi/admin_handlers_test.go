package httpapi

import (
	"net/http"
	"testing"

	"collegia.org/internal/access"
)

func TestDepartmentCreateIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/departments", f.tokens["hod"], map[string]string{
		"name": "Physics",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("hod create: expected 403, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/v1/departments", f.tokens["admin"], map[string]string{
		"name": "Physics",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	unit := decodeBody[access.Unit](t, rr)
	if unit.ID == "" || unit.Name != "Physics" {
		t.Fatalf("unexpected unit %+v", unit)
	}

	rr = f.do(t, http.MethodPost, "/v1/departments", f.tokens["admin"], map[string]string{
		"name": "  ",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank name: expected 400, got %d", rr.Code)
	}
}

func TestDepartmentListing(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/v1/departments", f.tokens["principal"], nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("principal list: expected 200, got %d", rr.Code)
	}
	body := decodeBody[struct {
		Departments []access.Unit `json:"departments"`
	}](t, rr)
	if len(body.Departments) != 2 {
		t.Fatalf("expected 2 departments, got %d", len(body.Departments))
	}

	// Students have no department grant.
	rr = f.do(t, http.MethodGet, "/v1/departments", f.tokens["student"], nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("student list: expected 403, got %d", rr.Code)
	}
}

func TestUserCreateAndApproval(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/users", f.tokens["admin"], map[string]any{
		"display_name": "Prof. New",
		"email":        "new@collegia.local",
		"password":     "initial-pass",
		"role":         "faculty",
		"unit_id":      f.unit.ID,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[access.Identity](t, rr)
	if created.Approved {
		t.Fatalf("new faculty must start unapproved")
	}

	// Until approved the account cannot log in.
	rr = f.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"email": "new@collegia.local", "password": "initial-pass",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unapproved login: expected 401, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/v1/users/"+created.ID+"/approval", f.tokens["admin"], map[string]bool{
		"approved": true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"email": "new@collegia.local", "password": "initial-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("approved login: expected 200, got %d", rr.Code)
	}
}

func TestUserCreateForbiddenForNonAdmins(t *testing.T) {
	f := newFixture(t)
	for _, label := range []string{"student", "faculty", "hod", "principal"} {
		rr := f.do(t, http.MethodPost, "/v1/users", f.tokens[label], map[string]any{
			"display_name": "X", "email": "x@collegia.local", "password": "p", "role": "student",
		})
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s create user: expected 403, got %d", label, rr.Code)
		}
	}
}

func TestUserListingScopedToUnit(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/v1/users?unit="+f.unit.ID, f.tokens["faculty"], nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("same-unit list: expected 200, got %d", rr.Code)
	}
	body := decodeBody[struct {
		Users []access.Identity `json:"users"`
	}](t, rr)
	if len(body.Users) != 5 {
		t.Fatalf("expected 5 users, got %d", len(body.Users))
	}

	rr = f.do(t, http.MethodGet, "/v1/users?unit=ME-202", f.tokens["faculty"], nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("cross-unit list: expected 403, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/users?unit=ME-202", f.tokens["admin"], nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin cross-unit list: expected 200, got %d", rr.Code)
	}
}

func TestUserApprovalUnknownID(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/v1/users/ghost/approval", f.tokens["admin"], map[string]bool{
		"approved": true,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUserScopedRouting(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/v1/users/x/approval", f.tokens["admin"], nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/v1/users/x/promote", f.tokens["admin"], map[string]bool{})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
