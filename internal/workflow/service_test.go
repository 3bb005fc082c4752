package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
)

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureSink) Append(_ context.Context, ev audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Action
	}
	return out
}

type serviceFixture struct {
	svc  *Service
	rec  *audit.Recorder
	sink *captureSink
	unit access.Unit
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dir := access.NewMemoryStore()
	unit := access.Unit{ID: "CS-101", Name: "Computer Science"}
	require.NoError(t, dir.CreateUnit(context.Background(), &unit))
	other := access.Unit{ID: "ME-202", Name: "Mechanical Engineering"}
	require.NoError(t, dir.CreateUnit(context.Background(), &other))

	sink := &captureSink{}
	rec := audit.NewRecorder(sink)
	t.Cleanup(rec.Close)

	guard, err := access.NewGuard(dir, rec)
	require.NoError(t, err)

	svc, err := NewService(NewInMemory(), guard, rec)
	require.NoError(t, err)
	svc.WithClock(func() time.Time { return testNow })

	return &serviceFixture{svc: svc, rec: rec, sink: sink, unit: unit}
}

func (f *serviceFixture) actor(role access.Role, head bool) access.AuthContext {
	return access.AuthContext{
		SubjectID:      "u-" + string(role),
		Role:           role,
		Unit:           access.UnitByID(f.unit.ID),
		DisplayName:    string(role) + " user",
		DepartmentHead: head,
		Elevated:       role == access.RoleAdmin,
	}
}

func TestSubmitSnapshotsUnit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	student := f.actor(access.RoleStudent, false)
	req, err := f.svc.Submit(ctx, student, "Bonafide", "visa paperwork")
	require.NoError(t, err)
	require.Equal(t, StagePending, req.Stage)
	require.Equal(t, "bonafide", req.Kind)
	require.Equal(t, int64(1), req.Version)
	require.NotNil(t, req.Unit)
	require.Equal(t, f.unit.ID, req.Unit.ID)
	// History holds stage transitions only; a fresh request has none.
	require.Empty(t, req.History)

	// Snapshot stays even if the pointer the caller held changes.
	student.Unit.ID = "ME-202"
	loaded, err := f.svc.Get(ctx, f.actor(access.RoleStudent, false), req.ID)
	require.NoError(t, err)
	require.Equal(t, f.unit.ID, loaded.Unit.ID)
}

func TestSubmitValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.actor(access.RoleFaculty, false), KindBonafide, "")
	require.ErrorIs(t, err, access.ErrUnauthorized)

	_, err = f.svc.Submit(ctx, f.actor(access.RoleStudent, false), "diploma", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	unitless := f.actor(access.RoleStudent, false)
	unitless.Unit = nil
	_, err = f.svc.Submit(ctx, unitless, KindBonafide, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestEndToEndApprovalChainWithFinalRejection(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.actor(access.RoleStudent, false), KindBonafide, "visa paperwork")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.actor(access.RoleFaculty, false), req.ID, "records verified")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.actor(access.RoleHOD, true), req.ID, "")
	require.NoError(t, err)

	// The admin notices missing paperwork and rejects instead of approving.
	final, err := f.svc.Reject(ctx, f.actor(access.RoleAdmin, false), req.ID, "incomplete documents")
	require.NoError(t, err)
	require.Equal(t, StageRejected, final.Stage)

	actions := make([]string, len(final.History))
	for i, entry := range final.History {
		actions[i] = entry.Action
	}
	require.Equal(t, []string{ActionApproved, ActionApproved, ActionRejected}, actions)
	require.Equal(t, "incomplete documents", final.History[2].Comment)

	// Terminal: nothing moves it again.
	_, err = f.svc.Approve(ctx, f.actor(access.RoleAdmin, false), req.ID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Reject(ctx, f.actor(access.RoleAdmin, false), req.ID, "again")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFullChainToIssued(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.actor(access.RoleStudent, false), KindConduct, "")
	require.NoError(t, err)

	for _, step := range []access.AuthContext{
		f.actor(access.RoleFaculty, false),
		f.actor(access.RoleHOD, true),
		f.actor(access.RolePrincipal, false),
	} {
		_, err = f.svc.Approve(ctx, step, req.ID, "")
		require.NoError(t, err)
	}

	issued, err := f.svc.Issue(ctx, f.actor(access.RoleAdmin, false), req.ID, "s3://certs/out.pdf")
	require.NoError(t, err)
	require.Equal(t, StageIssued, issued.Stage)
	require.Equal(t, "s3://certs/out.pdf", issued.ArtifactURL)
	require.Equal(t, int64(5), issued.Version)
}

func TestCrossDepartmentApprovalDenied(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.actor(access.RoleStudent, false), KindBonafide, "")
	require.NoError(t, err)

	outsider := f.actor(access.RoleFaculty, false)
	outsider.Unit = access.UnitByID("ME-202")
	_, err = f.svc.Approve(ctx, outsider, req.ID, "")
	require.ErrorIs(t, err, access.ErrForbidden)

	// Same-department approver referenced by display name still passes.
	insider := f.actor(access.RoleFaculty, false)
	insider.Unit = access.UnitByName("computer   science")
	_, err = f.svc.Approve(ctx, insider, req.ID, "")
	require.NoError(t, err)
}

func TestGetOwnRequestWithoutGuard(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	student := f.actor(access.RoleStudent, false)
	req, err := f.svc.Submit(ctx, student, KindLeaving, "")
	require.NoError(t, err)

	// Even after the student's unit reference goes stale, their own request
	// stays readable.
	moved := student
	moved.Unit = access.UnitByID("ME-202")
	_, err = f.svc.Get(ctx, moved, req.ID)
	require.NoError(t, err)

	// Another student in another department is refused.
	stranger := f.actor(access.RoleStudent, false)
	stranger.SubjectID = "someone-else"
	stranger.Unit = access.UnitByID("ME-202")
	_, err = f.svc.Get(ctx, stranger, req.ID)
	require.ErrorIs(t, err, access.ErrForbidden)
}

func TestConcurrentApprovalExactlyOneWins(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.actor(access.RoleStudent, false), KindBonafide, "")
	require.NoError(t, err)

	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := f.svc.Approve(ctx, f.actor(access.RoleFaculty, false), req.ID, "")
			results <- err
		}()
	}
	close(start)

	var wins, losses int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInvalidTransition):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	final, err := f.svc.Get(ctx, f.actor(access.RoleAdmin, false), req.ID)
	require.NoError(t, err)
	require.Equal(t, StageFacultyApproved, final.Stage)
	// Exactly one approval entry landed.
	require.Len(t, final.History, 1)
}

func TestAuditTrailCoversDenials(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.actor(access.RoleStudent, false), KindBonafide, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.actor(access.RoleStudent, false), req.ID, "")
	require.ErrorIs(t, err, access.ErrUnauthorized)

	f.rec.Close()

	actions := f.sink.actions()
	require.Contains(t, actions, "certificate.submit")
	require.Contains(t, actions, "certificate.approve")

	var denied bool
	f.sink.mu.Lock()
	for _, ev := range f.sink.events {
		if ev.Action == "certificate.approve" && ev.Outcome == audit.OutcomeFailure {
			denied = true
		}
	}
	f.sink.mu.Unlock()
	require.True(t, denied, "denied approval must be audited as failure")
}
