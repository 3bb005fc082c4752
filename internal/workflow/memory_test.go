package workflow

import (
	"context"
	"errors"
	"testing"

	"collegia.org/internal/access"
)

func TestInMemoryVersioning(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	req := pendingRequest()
	req.ID = ""
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.ID == "" || req.Version != 1 {
		t.Fatalf("unexpected created request %+v", req)
	}

	loaded, err := store.Find(ctx, req.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	loaded.Stage = StageFacultyApproved
	if err := store.Update(ctx, loaded, loaded.Version); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if loaded.Version != 2 {
		t.Fatalf("version = %d, want 2", loaded.Version)
	}

	// A second writer still holding version 1 loses.
	stale := req.Clone()
	stale.Stage = StageRejected
	if err := store.Update(ctx, stale, 1); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	current, err := store.Find(ctx, req.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if current.Stage != StageFacultyApproved || current.Version != 2 {
		t.Fatalf("stale write must not land: %+v", current)
	}
}

func TestInMemoryUpdateUnknown(t *testing.T) {
	store := NewInMemory()
	req := pendingRequest()
	if err := store.Update(context.Background(), req, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryFindReturnsCopies(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	req := pendingRequest()
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, _ := store.Find(ctx, req.ID)
	a.Stage = StageRejected
	a.History = append(a.History, HistoryEntry{Action: ActionRejected})

	b, _ := store.Find(ctx, req.ID)
	if b.Stage != StagePending || len(b.History) != 0 {
		t.Fatalf("mutating a loaded copy must not leak into the store: %+v", b)
	}
}

func TestInMemoryListByUnitMatchesIDOrName(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	byID := pendingRequest()
	byID.ID = "r1"
	byID.Unit = access.UnitByID("CS-101")
	byName := pendingRequest()
	byName.ID = "r2"
	byName.Unit = access.UnitByName("Computer Science")
	other := pendingRequest()
	other.ID = "r3"
	other.Unit = access.UnitByID("ME-202")

	for _, r := range []*Request{byID, byName, other} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := store.ListByUnit(ctx, "CS-101", 0)
	if err != nil {
		t.Fatalf("ListByUnit: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("unexpected result %+v", got)
	}
	got, err = store.ListByUnit(ctx, "Computer Science", 0)
	if err != nil {
		t.Fatalf("ListByUnit: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r2" {
		t.Fatalf("unexpected result %+v", got)
	}
}
