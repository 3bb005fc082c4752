package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
	"collegia.org/internal/feed"
	"collegia.org/internal/fees"
	"collegia.org/internal/workflow"
)

type fixture struct {
	api     *API
	handler http.Handler
	store   *access.MemoryStore
	svc     *access.Service
	unit    access.Unit
	feed    *feed.Feed

	tokens map[string]string // role label -> bearer token
	ids    map[string]string // role label -> subject id
}

// newFixture builds a fully wired API over in-memory stores with one
// department and one user per role, all pre-authenticated.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("COLLEGIA_AUTH_SECRET", "test-secret")
	access.ResetSecretForTests()
	t.Cleanup(access.ResetSecretForTests)

	store := access.NewMemoryStore()
	svc, err := access.NewService(store, store)
	if err != nil {
		t.Fatalf("access service: %v", err)
	}
	unit, err := svc.CreateUnit(context.Background(), "Computer Science")
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	if _, err := svc.CreateUnit(context.Background(), "Mechanical Engineering"); err != nil {
		t.Fatalf("create unit: %v", err)
	}

	rec := audit.NewRecorder(audit.SinkFunc(func(_ context.Context, _ audit.Event) error { return nil }))
	t.Cleanup(rec.Close)

	guard, err := access.NewGuard(store, rec)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	resolver, err := access.NewResolver(store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	wf, err := workflow.NewService(workflow.NewInMemory(), guard, rec)
	if err != nil {
		t.Fatalf("workflow service: %v", err)
	}

	f := &fixture{
		store:  store,
		svc:    svc,
		unit:   unit,
		feed:   feed.New(),
		tokens: make(map[string]string),
		ids:    make(map[string]string),
	}
	f.api = New(Options{
		Version:  "test",
		Access:   svc,
		Resolver: resolver,
		Workflow: wf,
		Fees:     fees.NewInMemory(),
		Recorder: rec,
		Feed:     f.feed,
		TokenTTL: time.Minute,
	})
	f.handler = f.api.Handler()

	f.seedUser(t, "student", access.RoleStudent, false)
	f.seedUser(t, "faculty", access.RoleFaculty, false)
	f.seedUser(t, "hod", access.RoleHOD, true)
	f.seedUser(t, "principal", access.RolePrincipal, false)
	f.seedUser(t, "admin", access.RoleAdmin, false)
	return f
}

func (f *fixture) seedUser(t *testing.T, label string, role access.Role, head bool) {
	t.Helper()
	id, err := f.svc.CreateIdentity(context.Background(), access.Identity{
		DisplayName:    label + " user",
		Email:          label + "@collegia.local",
		Role:           role,
		Unit:           access.UnitByID(f.unit.ID),
		DepartmentHead: head,
	}, "password-"+label)
	if err != nil {
		t.Fatalf("seed %s: %v", label, err)
	}
	if role == access.RoleFaculty {
		if err := f.svc.SetApproval(context.Background(), id.ID, true); err != nil {
			t.Fatalf("approve %s: %v", label, err)
		}
	}
	token, err := access.GenerateToken(id.ID, role, time.Minute)
	if err != nil {
		t.Fatalf("token %s: %v", label, err)
	}
	f.ids[label] = id.ID
	f.tokens[label] = token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
	body := decodeBody[map[string]any](t, rr)
	if body["service"] != "collegia-api" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/v1/nope", f.tokens["admin"], nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
