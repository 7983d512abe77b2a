package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/types"
)

func acceptedGoal(mode, targetKind string, targetValue float64) *types.Goal {
	acceptedAt := time.Now().Add(-24 * time.Hour)
	return &types.Goal{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Title:       "campanha",
		Mode:        mode,
		TargetKind:  targetKind,
		TargetValue: targetValue,
		Acceptance:  types.GoalAcceptanceAccepted,
		AcceptedAt:  &acceptedAt,
		Status:      types.GoalStatusActive,
		IsActive:    true,
	}
}

func activePolicy(policyType, contractType string, premium float64) *types.Policy {
	return &types.Policy{
		ID:           uuid.New(),
		Number:       uuid.NewString(),
		Type:         policyType,
		ContractType: contractType,
		PremiumValue: premium,
		Status:       types.PolicyStatusActive,
		CreatedAt:    time.Now(),
	}
}

func withCriteria(goal *types.Goal, criteria []types.GoalCriterion) *types.Goal {
	raw, err := json.Marshal(criteria)
	if err != nil {
		panic(err)
	}
	goal.Criteria = raw
	return goal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestEvaluateGoal_SimpleValueTargetCapsAt100(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 10000)
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 4000),
		activePolicy(types.PolicyTypeResidential, types.ContractTypeRenewal, 6500),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CurrentValue != 10500 {
		t.Fatalf("expected current 10500, got %v", progress.CurrentValue)
	}
	if progress.Percent != 100 {
		t.Fatalf("expected percent capped at 100, got %v", progress.Percent)
	}
	if !progress.Completed {
		t.Fatalf("expected completed")
	}
}

func TestEvaluateGoal_SimpleBelowTargetIncomplete(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 10000)
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 2500),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.Completed {
		t.Fatalf("expected incomplete")
	}
	if !almostEqual(progress.Percent, 25) {
		t.Fatalf("expected 25%%, got %v", progress.Percent)
	}
}

func TestEvaluateGoal_SimpleCountTarget(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindCount, 3)
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 100),
		activePolicy(types.PolicyTypeAuto, types.ContractTypeRenewal, 200),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CurrentValue != 2 {
		t.Fatalf("expected count 2, got %v", progress.CurrentValue)
	}
	if progress.Completed {
		t.Fatalf("expected incomplete at 2/3")
	}
}

func TestEvaluateGoal_SimpleNonPositiveTargetRejected(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 0)
	_, err := EvaluateGoal(goal, nil)
	if !apierr.Is(err, apierr.CodeInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestEvaluateGoal_PolicyBeforeAcceptanceNeverCounts(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 1000)
	early := activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 5000)
	early.CreatedAt = goal.AcceptedAt.Add(-time.Hour)

	progress, err := EvaluateGoal(goal, []*types.Policy{early})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CurrentValue != 0 {
		t.Fatalf("pre-acceptance policy contributed: current %v", progress.CurrentValue)
	}
	if progress.Completed {
		t.Fatalf("expected incomplete")
	}
}

func TestEvaluateGoal_CancelledPolicyNeverCounts(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 1000)
	cancelled := activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 5000)
	cancelled.Status = types.PolicyStatusCancelled

	progress, err := EvaluateGoal(goal, []*types.Policy{cancelled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CurrentValue != 0 {
		t.Fatalf("cancelled policy contributed: current %v", progress.CurrentValue)
	}
}

func TestEvaluateGoal_UnacceptedGoalCountsNothing(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 1000)
	goal.Acceptance = types.GoalAcceptancePending
	goal.AcceptedAt = nil

	progress, err := EvaluateGoal(goal, []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 5000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CurrentValue != 0 || progress.Completed {
		t.Fatalf("unaccepted goal accumulated progress: %+v", progress)
	}
}

func TestEvaluateGoal_CompositeAveragesIncompletePercentages(t *testing.T) {
	goal := withCriteria(acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0), []types.GoalCriterion{
		{Name: "autos novos", PolicyType: types.PolicyTypeAuto, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindCount, TargetValue: 3},
		{Name: "residencial", PolicyType: types.PolicyTypeResidential, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindValue, TargetValue: 2000},
	})
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 900),
		activePolicy(types.PolicyTypeAuto, types.ContractTypeRenewal, 700),
		activePolicy(types.PolicyTypeResidential, types.ContractTypeNew, 1500),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.Completed {
		t.Fatalf("expected incomplete: both criteria below target")
	}
	// (2/3)*100 and (1500/2000)*100 averaged.
	if !almostEqual(progress.Percent, (200.0/3+75)/2) {
		t.Fatalf("expected ~70.83%%, got %v", progress.Percent)
	}
	if len(progress.Criteria) != 2 {
		t.Fatalf("expected 2 criterion entries, got %d", len(progress.Criteria))
	}
	if progress.Criteria[0].CurrentValue != 2 {
		t.Fatalf("expected auto count 2, got %v", progress.Criteria[0].CurrentValue)
	}
	if progress.Criteria[1].CurrentValue != 1500 {
		t.Fatalf("expected residential value 1500, got %v", progress.Criteria[1].CurrentValue)
	}
}

func TestEvaluateGoal_CompositeCompleteOnlyWhenEveryCriterionMet(t *testing.T) {
	goal := withCriteria(acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0), []types.GoalCriterion{
		{PolicyType: types.PolicyTypeAuto, ContractType: types.ContractTypeNew, TargetKind: types.TargetKindCount, TargetValue: 1},
		{PolicyType: types.PolicyTypeResidential, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindValue, TargetValue: 1000},
	})
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 500),
		activePolicy(types.PolicyTypeResidential, types.ContractTypeNew, 1200),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !progress.Completed {
		t.Fatalf("expected completed: every criterion met")
	}
	if progress.Percent != 100 {
		t.Fatalf("expected 100%% when complete, got %v", progress.Percent)
	}
}

func TestEvaluateGoal_CompositeOverachievedCriterionDoesNotCompensate(t *testing.T) {
	goal := withCriteria(acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0), []types.GoalCriterion{
		{PolicyType: types.PolicyTypeAuto, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindValue, TargetValue: 1000},
		{PolicyType: types.PolicyTypeResidential, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindCount, TargetValue: 1},
	})
	// Auto criterion at 500%, residential at 0: averaged with the cap the
	// goal sits at 50%, and stays incomplete.
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 5000),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.Completed {
		t.Fatalf("expected incomplete with one unmet criterion")
	}
	if !almostEqual(progress.Percent, 50) {
		t.Fatalf("expected capped average 50%%, got %v", progress.Percent)
	}
}

func TestEvaluateGoal_CompositeMinimumPremiumFilters(t *testing.T) {
	goal := withCriteria(acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0), []types.GoalCriterion{
		{PolicyType: types.PolicyTypeAny, ContractType: types.ContractTypeEither, MinimumPremium: 1000, TargetKind: types.TargetKindCount, TargetValue: 2},
	})
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 999),
		activePolicy(types.PolicyTypeResidential, types.ContractTypeRenewal, 1000),
		activePolicy(types.PolicyTypeAuto, types.ContractTypeRenewal, 2500),
	}

	progress, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.Criteria[0].CurrentValue != 2 {
		t.Fatalf("expected 2 policies above the premium floor, got %v", progress.Criteria[0].CurrentValue)
	}
	if !progress.Completed {
		t.Fatalf("expected completed")
	}
}

func TestEvaluateGoal_CompositeZeroCriteriaNeverCompletes(t *testing.T) {
	goal := acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0)
	progress, err := EvaluateGoal(goal, []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 5000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.Completed {
		t.Fatalf("composite goal without criteria completed")
	}
}

func TestEvaluateGoal_UndecodableCriteriaEvaluatedAsZeroCriteria(t *testing.T) {
	goal := acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0)
	goal.Criteria = []byte(`{"this is": "not an array"`)

	progress, err := EvaluateGoal(goal, []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 5000),
	})
	if !apierr.Is(err, apierr.CodeInvalidCriteria) {
		t.Fatalf("expected invalid_criteria, got %v", err)
	}
	if progress == nil {
		t.Fatalf("expected a zero-criteria progress alongside the error")
	}
	if progress.Completed || progress.CurrentValue != 0 {
		t.Fatalf("undecodable criteria must not credit the goal: %+v", progress)
	}
	if progress.Mode != types.GoalModeComposite {
		t.Fatalf("goal must stay composite, got %q", progress.Mode)
	}
}

func TestEvaluateGoal_Deterministic(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 8000)
	policies := []*types.Policy{
		activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 3000),
		activePolicy(types.PolicyTypeResidential, types.ContractTypeRenewal, 2000),
	}

	first, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := EvaluateGoal(goal, policies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CurrentValue != second.CurrentValue ||
		first.Percent != second.Percent ||
		first.Completed != second.Completed {
		t.Fatalf("re-evaluation diverged: %+v vs %+v", first, second)
	}
}
