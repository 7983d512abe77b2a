package services

import (
	"context"
	"testing"

	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/repos/testutil"
	"github.com/apoliceplus/backend/internal/types"
)

func TestRecomputeGoal_IdempotentAndAwardsPrizeOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	goalRepo := repos.NewGoalRepo(tx, log)
	policyRepo := repos.NewPolicyRepo(tx, log)
	linkRepo := repos.NewPolicyGoalLinkRepo(tx, log)
	prizeRepo := repos.NewConqueredPrizeRepo(tx, log)
	svc := NewProgressService(tx, log, goalRepo, linkRepo, policyRepo, prizeRepo, nil)

	user := testutil.SeedUser(t, ctx, tx, "recompute@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	if err := tx.Model(&types.Goal{}).Where("id = ?", goal.ID).
		Updates(map[string]interface{}{"prize_quantity": 1, "prize_unit_value": 200}).Error; err != nil {
		t.Fatalf("set prize fields: %v", err)
	}

	policy := testutil.SeedPolicy(t, ctx, tx, user.ID, 600)
	testutil.SeedLink(t, ctx, tx, policy.ID, goal.ID)

	progress, changed, err := svc.RecomputeGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("RecomputeGoal: %v", err)
	}
	if !changed {
		t.Fatalf("expected first recompute to reconcile stored fields")
	}
	if progress.CurrentValue != 600 || progress.Completed {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	// Same inputs again: nothing to write.
	_, changed, err = svc.RecomputeGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("RecomputeGoal (repeat): %v", err)
	}
	if changed {
		t.Fatalf("recompute on unchanged inputs wrote state")
	}

	// Cross the target and complete.
	second := testutil.SeedPolicy(t, ctx, tx, user.ID, 500)
	testutil.SeedLink(t, ctx, tx, second.ID, goal.ID)

	progress, changed, err = svc.RecomputeGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("RecomputeGoal (completing): %v", err)
	}
	if !changed || !progress.Completed {
		t.Fatalf("expected completion, got changed=%v progress=%+v", changed, progress)
	}

	stored, err := goalRepo.GetByID(ctx, tx, goal.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != types.GoalStatusCompleted || stored.CompletedAt == nil {
		t.Fatalf("expected stored completion, got status=%q completed_at=%v", stored.Status, stored.CompletedAt)
	}
	if stored.CurrentValue != 1100 || stored.ProgressPercent != 100 {
		t.Fatalf("unexpected stored values: current=%v percent=%v", stored.CurrentValue, stored.ProgressPercent)
	}

	prizes, err := prizeRepo.ListByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	if len(prizes) != 1 {
		t.Fatalf("expected exactly one prize, got %d", len(prizes))
	}
	if prizes[0].Quantity != 1 || prizes[0].EstimatedUnitValue != 200 {
		t.Fatalf("unexpected prize: %+v", prizes[0])
	}

	// A further recompute after completion must not award again.
	if _, _, err := svc.RecomputeGoal(ctx, goal.ID); err != nil {
		t.Fatalf("RecomputeGoal (after completion): %v", err)
	}
	prizes, err = prizeRepo.ListByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID (repeat): %v", err)
	}
	if len(prizes) != 1 {
		t.Fatalf("prize awarded twice: %d", len(prizes))
	}
}
