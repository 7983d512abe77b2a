package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/repos/testutil"
	"github.com/apoliceplus/backend/internal/types"
)

func TestPolicyGoalLinkRepo_UpsertUpdatesVerdictInPlace(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewPolicyGoalLinkRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "linkrepo@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	policy := testutil.SeedPolicy(t, ctx, tx, user.ID, 500)

	confidence := 100.0
	if err := repo.Upsert(ctx, tx, &types.PolicyGoalLink{
		ID:                   uuid.New(),
		PolicyID:             policy.ID,
		GoalID:               goal.ID,
		IsActive:             true,
		ConfidenceScore:      &confidence,
		MatchedAutomatically: true,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Second upsert for the same pair flips the verdict instead of adding
	// a row.
	if err := repo.Upsert(ctx, tx, &types.PolicyGoalLink{
		ID:                   uuid.New(),
		PolicyID:             policy.ID,
		GoalID:               goal.ID,
		IsActive:             false,
		MatchedAutomatically: true,
	}); err != nil {
		t.Fatalf("Upsert (second): %v", err)
	}

	all, err := repo.ListByPolicyID(ctx, tx, policy.ID)
	if err != nil {
		t.Fatalf("ListByPolicyID: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single link row, got %d", len(all))
	}
	if all[0].IsActive {
		t.Fatalf("expected verdict to be refreshed to inactive")
	}

	active, err := repo.ListByGoalID(ctx, tx, goal.ID, true)
	if err != nil {
		t.Fatalf("ListByGoalID: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active links, got %d", len(active))
	}
}
