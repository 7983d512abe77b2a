package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/clients/openai"
	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/types"
)

// PolicyMatchService evaluates a policy against every accepted campaign of
// its broker and records the verdicts as link rows. Rows are written for
// matches and non-matches alike, and are never deleted, so the display
// history covers rejected evaluations too.
type PolicyMatchService interface {
	EvaluatePolicy(ctx context.Context, policy *types.Policy) error
}

type policyMatchService struct {
	db       *gorm.DB
	log      *logger.Logger
	goalRepo repos.GoalRepo
	linkRepo repos.PolicyGoalLinkRepo
	progress ProgressService
	ai       openai.Client // optional
}

func NewPolicyMatchService(
	db *gorm.DB,
	baseLog *logger.Logger,
	goalRepo repos.GoalRepo,
	linkRepo repos.PolicyGoalLinkRepo,
	progress ProgressService,
	ai openai.Client,
) PolicyMatchService {
	return &policyMatchService{
		db:       db,
		log:      baseLog.With("service", "PolicyMatchService"),
		goalRepo: goalRepo,
		linkRepo: linkRepo,
		progress: progress,
		ai:       ai,
	}
}

// policyMatchesGoal is the single-policy variant of the evaluator's
// predicate: the same per-criterion filter decides "would this policy
// count toward this goal".
func policyMatchesGoal(goal *types.Goal, policy *types.Policy) (matched bool, confidence float64, err error) {
	if !policyCounts(goal, policy) {
		return false, 0, nil
	}
	if goal.Mode != types.GoalModeComposite {
		// Simple campaigns aggregate every qualifying policy.
		return true, 100, nil
	}
	criteria, err := decodeCriteria(goal)
	if err != nil {
		return false, 0, err
	}
	if len(criteria) == 0 {
		return false, 0, nil
	}
	hits := 0
	for _, criterion := range criteria {
		if criterionMatches(criterion, policy) {
			hits++
		}
	}
	if hits == 0 {
		return false, 0, nil
	}
	return true, float64(hits) / float64(len(criteria)) * 100, nil
}

func (s *policyMatchService) EvaluatePolicy(ctx context.Context, policy *types.Policy) error {
	if policy == nil {
		return apierr.InvalidInput(fmt.Errorf("policy is nil"))
	}

	goals, err := s.goalRepo.ListAcceptedActive(ctx, nil, policy.UserID, time.Now())
	if err != nil {
		return apierr.Upstream(fmt.Errorf("list goals: %w", err))
	}

	var matchedGoals []uuid.UUID
	for _, goal := range goals {
		matched, confidence, evalErr := policyMatchesGoal(goal, policy)
		if evalErr != nil && !apierr.Is(evalErr, apierr.CodeInvalidCriteria) {
			return evalErr
		}
		if evalErr != nil {
			s.log.Warn("Goal has undecodable criteria, recording non-match", "goal_id", goal.ID, "error", evalErr)
		}

		link := &types.PolicyGoalLink{
			ID:                   uuid.New(),
			PolicyID:             policy.ID,
			GoalID:               goal.ID,
			IsActive:             matched,
			MatchedAutomatically: true,
		}
		if matched {
			link.ConfidenceScore = &confidence
			link.Justification = s.justify(ctx, goal, policy)
		}
		if err := s.linkRepo.Upsert(ctx, nil, link); err != nil {
			return apierr.Upstream(fmt.Errorf("upsert link: %w", err))
		}
		if matched {
			matchedGoals = append(matchedGoals, goal.ID)
		}
	}

	for _, goalID := range matchedGoals {
		if _, _, err := s.progress.RecomputeGoal(ctx, goalID); err != nil {
			if apierr.Is(err, apierr.CodeInvalidCriteria) {
				continue
			}
			return err
		}
	}
	return nil
}

// justify asks the text-completion service for a one-line explanation of
// why the policy fits the campaign. The verdict is already decided by the
// predicate above; an AI failure only costs the display text.
func (s *policyMatchService) justify(ctx context.Context, goal *types.Goal, policy *types.Policy) string {
	if s.ai == nil {
		return ""
	}
	system := "You explain, in one short sentence in Portuguese, why an insurance policy counts toward a broker's sales campaign. Be factual."
	user := fmt.Sprintf(
		"Campaign: %s (%s). Policy: number %s, type %s, contract %s, premium %.2f.",
		goal.Title, goal.Description, policy.Number, policy.Type, policy.ContractType, policy.PremiumValue,
	)
	text, err := s.ai.GenerateText(ctx, system, user)
	if err != nil {
		s.log.Warn("Link justification generation failed", "goal_id", goal.ID, "policy_id", policy.ID, "error", err)
		return ""
	}
	return text
}
