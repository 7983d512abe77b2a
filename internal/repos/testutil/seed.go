package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/types"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedAcceptedGoal creates a simple-mode goal accepted an hour ago so
// freshly seeded policies fall inside its window.
func SeedAcceptedGoal(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, targetKind string, targetValue float64) *types.Goal {
	tb.Helper()
	acceptedAt := time.Now().Add(-time.Hour)
	g := &types.Goal{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       "campanha",
		Mode:        types.GoalModeSimple,
		TargetKind:  targetKind,
		TargetValue: targetValue,
		Acceptance:  types.GoalAcceptanceAccepted,
		AcceptedAt:  &acceptedAt,
		Status:      types.GoalStatusActive,
		IsActive:    true,
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed goal: %v", err)
	}
	return g
}

func SeedPolicy(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, premium float64) *types.Policy {
	tb.Helper()
	p := &types.Policy{
		ID:           uuid.New(),
		UserID:       userID,
		Number:       uuid.NewString(),
		Type:         types.PolicyTypeAuto,
		ContractType: types.ContractTypeNew,
		PremiumValue: premium,
		Status:       types.PolicyStatusActive,
		IssuedAt:     time.Now(),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed policy: %v", err)
	}
	return p
}

func SeedLink(tb testing.TB, ctx context.Context, tx *gorm.DB, policyID, goalID uuid.UUID) *types.PolicyGoalLink {
	tb.Helper()
	l := &types.PolicyGoalLink{
		ID:       uuid.New(),
		PolicyID: policyID,
		GoalID:   goalID,
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed link: %v", err)
	}
	return l
}

func SeedPrize(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, goalID uuid.UUID, quantity int, unitValue float64) *types.ConqueredPrize {
	tb.Helper()
	p := &types.ConqueredPrize{
		ID:                 uuid.New(),
		UserID:             userID,
		GoalID:             goalID,
		Quantity:           quantity,
		EstimatedUnitValue: unitValue,
		Status:             types.PrizeStatusAvailable,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed prize: %v", err)
	}
	return p
}

func PtrTime(v time.Time) *time.Time { return &v }
