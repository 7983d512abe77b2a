package repos

import (
	"context"
	"testing"
	"time"

	"github.com/apoliceplus/backend/internal/repos/testutil"
	"github.com/apoliceplus/backend/internal/types"
)

func TestGoalRepo_SetAcceptanceIsOneShot(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewGoalRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "goalrepo@example.com")
	created, err := repo.Create(ctx, tx, []*types.Goal{{
		UserID:      user.ID,
		Title:       "campanha",
		Mode:        types.GoalModeSimple,
		TargetKind:  types.TargetKindValue,
		TargetValue: 1000,
		Acceptance:  types.GoalAcceptancePending,
		Status:      types.GoalStatusActive,
		IsActive:    true,
	}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	goalID := created[0].ID

	affected, err := repo.SetAcceptance(ctx, tx, goalID, types.GoalAcceptanceAccepted, time.Now())
	if err != nil {
		t.Fatalf("SetAcceptance: %v", err)
	}
	if affected != 1 {
		t.Fatalf("SetAcceptance: expected 1 row, got %d", affected)
	}

	// Second decision must not win.
	affected, err = repo.SetAcceptance(ctx, tx, goalID, types.GoalAcceptanceRejected, time.Now())
	if err != nil {
		t.Fatalf("SetAcceptance (second): %v", err)
	}
	if affected != 0 {
		t.Fatalf("SetAcceptance (second): expected 0 rows, got %d", affected)
	}

	got, err := repo.GetByID(ctx, tx, goalID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Acceptance != types.GoalAcceptanceAccepted {
		t.Fatalf("expected acceptance to stay accepted, got %q", got.Acceptance)
	}
	if got.AcceptedAt == nil {
		t.Fatalf("expected accepted_at to be stamped")
	}
}

func TestGoalRepo_ListAcceptedActiveFiltersWindow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewGoalRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "goalwindow@example.com")
	now := time.Now()
	acceptedAt := now.Add(-time.Hour)

	inWindow := &types.Goal{
		UserID: user.ID, Title: "aberta", Mode: types.GoalModeSimple,
		TargetKind: types.TargetKindValue, TargetValue: 100,
		Acceptance: types.GoalAcceptanceAccepted, AcceptedAt: &acceptedAt,
		Status: types.GoalStatusActive, IsActive: true,
	}
	expired := &types.Goal{
		UserID: user.ID, Title: "expirada", Mode: types.GoalModeSimple,
		TargetKind: types.TargetKindValue, TargetValue: 100,
		Acceptance: types.GoalAcceptanceAccepted, AcceptedAt: &acceptedAt,
		Status: types.GoalStatusActive, IsActive: true,
		EndsAt: testutil.PtrTime(now.Add(-time.Minute)),
	}
	pending := &types.Goal{
		UserID: user.ID, Title: "pendente", Mode: types.GoalModeSimple,
		TargetKind: types.TargetKindValue, TargetValue: 100,
		Acceptance: types.GoalAcceptancePending,
		Status:     types.GoalStatusActive, IsActive: true,
	}
	if _, err := repo.Create(ctx, tx, []*types.Goal{inWindow, expired, pending}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	goals, err := repo.ListAcceptedActive(ctx, tx, user.ID, now)
	if err != nil {
		t.Fatalf("ListAcceptedActive: %v", err)
	}
	if len(goals) != 1 || goals[0].ID != inWindow.ID {
		t.Fatalf("expected only the in-window accepted goal, got %d", len(goals))
	}
}
