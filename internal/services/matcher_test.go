package services

import (
	"testing"
	"time"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/types"
)

func TestPolicyMatchesGoal_SimpleGoalMatchesAnyQualifyingPolicy(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 10000)
	policy := activePolicy(types.PolicyTypeResidential, types.ContractTypeRenewal, 800)

	matched, confidence, err := policyMatchesGoal(goal, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched || confidence != 100 {
		t.Fatalf("expected full match, got matched=%v confidence=%v", matched, confidence)
	}
}

func TestPolicyMatchesGoal_PreAcceptancePolicyNeverMatches(t *testing.T) {
	goal := acceptedGoal(types.GoalModeSimple, types.TargetKindValue, 10000)
	policy := activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 800)
	policy.CreatedAt = goal.AcceptedAt.Add(-time.Minute)

	matched, _, err := policyMatchesGoal(goal, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched {
		t.Fatalf("policy created before acceptance matched")
	}
}

func TestPolicyMatchesGoal_CompositeConfidenceIsHitRatio(t *testing.T) {
	goal := withCriteria(acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0), []types.GoalCriterion{
		{PolicyType: types.PolicyTypeAuto, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindCount, TargetValue: 3},
		{PolicyType: types.PolicyTypeResidential, ContractType: types.ContractTypeEither, TargetKind: types.TargetKindValue, TargetValue: 2000},
	})
	policy := activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 1200)

	matched, confidence, err := policyMatchesGoal(goal, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !matched {
		t.Fatalf("expected match on the auto criterion")
	}
	if !almostEqual(confidence, 50) {
		t.Fatalf("expected 50%% confidence for 1 of 2 criteria, got %v", confidence)
	}
}

func TestPolicyMatchesGoal_CompositeNoCriterionHitIsNonMatch(t *testing.T) {
	goal := withCriteria(acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0), []types.GoalCriterion{
		{PolicyType: types.PolicyTypeAuto, ContractType: types.ContractTypeNew, MinimumPremium: 5000, TargetKind: types.TargetKindCount, TargetValue: 1},
	})
	policy := activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 1200)

	matched, _, err := policyMatchesGoal(goal, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched {
		t.Fatalf("policy below the premium floor matched")
	}
}

func TestPolicyMatchesGoal_UndecodableCriteriaSurfacesError(t *testing.T) {
	goal := acceptedGoal(types.GoalModeComposite, types.TargetKindCount, 0)
	goal.Criteria = []byte(`not json`)
	policy := activePolicy(types.PolicyTypeAuto, types.ContractTypeNew, 1200)

	matched, _, err := policyMatchesGoal(goal, policy)
	if !apierr.Is(err, apierr.CodeInvalidCriteria) {
		t.Fatalf("expected invalid_criteria, got %v", err)
	}
	if matched {
		t.Fatalf("undecodable criteria must record a non-match")
	}
}
