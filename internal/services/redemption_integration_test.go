package services

import (
	"context"
	"testing"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/repos/testutil"
	"github.com/apoliceplus/backend/internal/types"
)

func TestCreateOrder_GuardsLeaveNoTrace(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	prizeRepo := repos.NewConqueredPrizeRepo(tx, log)
	orderRepo := repos.NewRedemptionOrderRepo(tx, log)
	svc := NewRedemptionService(tx, log, prizeRepo, orderRepo)

	user := testutil.SeedUser(t, ctx, tx, "redeem-guards@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	prize := testutil.SeedPrize(t, ctx, tx, user.ID, goal.ID, 2, 150)

	// More units than owned.
	if _, err := svc.CreateOrder(ctx, user.ID, prize.ID, 3); !apierr.Is(err, apierr.CodeInvalidInput) {
		t.Fatalf("expected invalid_input for oversized quantity, got %v", err)
	}

	orders, err := orderRepo.ListByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("refused order left a row: %d", len(orders))
	}
	got, err := prizeRepo.GetByID(ctx, tx, prize.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.PrizeStatusAvailable {
		t.Fatalf("refused order changed the prize: %q", got.Status)
	}
}

func TestCreateOrder_BalanceGuard(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	prizeRepo := repos.NewConqueredPrizeRepo(tx, log)
	orderRepo := repos.NewRedemptionOrderRepo(tx, log)
	svc := NewRedemptionService(tx, log, prizeRepo, orderRepo)

	user := testutil.SeedUser(t, ctx, tx, "redeem-balance@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	prize := testutil.SeedPrize(t, ctx, tx, user.ID, goal.ID, 1, 300)

	// A pending order already spoken for eats the whole balance.
	if _, err := orderRepo.Create(ctx, tx, []*types.RedemptionOrder{{
		UserID:     user.ID,
		Quantity:   1,
		TotalValue: 300,
		Status:     types.OrderStatusPending,
	}}); err != nil {
		t.Fatalf("seed outstanding order: %v", err)
	}

	if _, err := svc.CreateOrder(ctx, user.ID, prize.ID, 1); !apierr.Is(err, apierr.CodeInvalidInput) {
		t.Fatalf("expected invalid_input for insufficient balance, got %v", err)
	}
	got, err := prizeRepo.GetByID(ctx, tx, prize.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.PrizeStatusAvailable {
		t.Fatalf("refused order changed the prize: %q", got.Status)
	}
}

func TestCreateOrder_RedeemsPrizeAtomically(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	prizeRepo := repos.NewConqueredPrizeRepo(tx, log)
	orderRepo := repos.NewRedemptionOrderRepo(tx, log)
	svc := NewRedemptionService(tx, log, prizeRepo, orderRepo)

	user := testutil.SeedUser(t, ctx, tx, "redeem-ok@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	prize := testutil.SeedPrize(t, ctx, tx, user.ID, goal.ID, 2, 150)

	order, err := svc.CreateOrder(ctx, user.ID, prize.ID, 2)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.TotalValue != 300 || order.Status != types.OrderStatusPending {
		t.Fatalf("unexpected order: %+v", order)
	}

	got, err := prizeRepo.GetByID(ctx, tx, prize.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.PrizeStatusRedeemed {
		t.Fatalf("expected prize redeemed, got %q", got.Status)
	}
	if got.RedemptionOrderID == nil || *got.RedemptionOrderID != order.ID {
		t.Fatalf("prize does not reference the order: %v", got.RedemptionOrderID)
	}

	// The prize is consumed; a second redemption attempt is refused
	// before any write.
	if _, err := svc.CreateOrder(ctx, user.ID, prize.ID, 1); !apierr.Is(err, apierr.CodeInvalidInput) {
		t.Fatalf("expected invalid_input for a consumed prize, got %v", err)
	}
}

func TestOrderLifecycle_TransitionsAndStamps(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	prizeRepo := repos.NewConqueredPrizeRepo(tx, log)
	orderRepo := repos.NewRedemptionOrderRepo(tx, log)
	svc := NewRedemptionService(tx, log, prizeRepo, orderRepo)

	user := testutil.SeedUser(t, ctx, tx, "redeem-lifecycle@example.com")
	goal := testutil.SeedAcceptedGoal(t, ctx, tx, user.ID, types.TargetKindValue, 1000)
	prize := testutil.SeedPrize(t, ctx, tx, user.ID, goal.ID, 1, 100)

	order, err := svc.CreateOrder(ctx, user.ID, prize.ID, 1)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// Deliver straight from pending is rejected without touching the row.
	if _, err := svc.DeliverOrder(ctx, order.ID); !apierr.Is(err, apierr.CodeConflict) {
		t.Fatalf("expected conflict for pending->delivered, got %v", err)
	}

	approved, err := svc.ApproveOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	if approved.Status != types.OrderStatusApproved || approved.DecidedAt == nil {
		t.Fatalf("unexpected approved order: %+v", approved)
	}

	// Broker cancel is pending-only.
	if _, err := svc.CancelOrder(ctx, user.ID, order.ID); !apierr.Is(err, apierr.CodeConflict) {
		t.Fatalf("expected conflict cancelling an approved order, got %v", err)
	}

	delivered, err := svc.DeliverOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("DeliverOrder: %v", err)
	}
	if delivered.Status != types.OrderStatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected delivered order: %+v", delivered)
	}
}
