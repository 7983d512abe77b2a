package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/repos/testutil"
	"github.com/apoliceplus/backend/internal/types"
)

func TestConqueredPrizeRepo_MarkRedeemedGuardsStatus(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewConqueredPrizeRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "prizerepo@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	prize := testutil.SeedPrize(t, ctx, tx, user.ID, goal.ID, 2, 150)

	orderID := uuid.New()
	affected, err := repo.MarkRedeemed(ctx, tx, prize.ID, orderID)
	if err != nil {
		t.Fatalf("MarkRedeemed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("MarkRedeemed: expected 1 row, got %d", affected)
	}

	// A second attempt finds the status guard already consumed.
	affected, err = repo.MarkRedeemed(ctx, tx, prize.ID, uuid.New())
	if err != nil {
		t.Fatalf("MarkRedeemed (second): %v", err)
	}
	if affected != 0 {
		t.Fatalf("MarkRedeemed (second): expected 0 rows, got %d", affected)
	}

	got, err := repo.GetByID(ctx, tx, prize.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.PrizeStatusRedeemed {
		t.Fatalf("expected redeemed, got %q", got.Status)
	}
	if got.RedemptionOrderID == nil || *got.RedemptionOrderID != orderID {
		t.Fatalf("expected first order id to stick, got %v", got.RedemptionOrderID)
	}
}

func TestConqueredPrizeRepo_SumAvailableValueIgnoresRedeemed(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewConqueredPrizeRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "prizesum@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	testutil.SeedPrize(t, ctx, tx, user.ID, goal.ID, 2, 150) // 300 available

	goal2 := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 2000)
	redeemed := testutil.SeedPrize(t, ctx, tx, user.ID, goal2.ID, 1, 500)
	if _, err := repo.MarkRedeemed(ctx, tx, redeemed.ID, uuid.New()); err != nil {
		t.Fatalf("MarkRedeemed: %v", err)
	}

	total, err := repo.SumAvailableValue(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("SumAvailableValue: %v", err)
	}
	if total != 300 {
		t.Fatalf("expected 300, got %v", total)
	}
}
