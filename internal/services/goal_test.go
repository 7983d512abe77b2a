package services

import (
	"testing"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/types"
)

func TestValidateCriterion(t *testing.T) {
	valid := types.GoalCriterion{
		PolicyType:   types.PolicyTypeAuto,
		ContractType: types.ContractTypeEither,
		TargetKind:   types.TargetKindCount,
		TargetValue:  3,
	}
	if err := validateCriterion(0, valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name  string
		tweak func(c *types.GoalCriterion)
	}{
		{"unknown policy type", func(c *types.GoalCriterion) { c.PolicyType = "marine" }},
		{"unknown contract type", func(c *types.GoalCriterion) { c.ContractType = "transfer" }},
		{"unknown target kind", func(c *types.GoalCriterion) { c.TargetKind = "points" }},
		{"zero target", func(c *types.GoalCriterion) { c.TargetValue = 0 }},
		{"negative premium floor", func(c *types.GoalCriterion) { c.MinimumPremium = -1 }},
	}
	for _, tc := range cases {
		c := valid
		tc.tweak(&c)
		if err := validateCriterion(0, c); !apierr.Is(err, apierr.CodeInvalidInput) {
			t.Fatalf("%s: expected invalid_input, got %v", tc.name, err)
		}
	}
}
