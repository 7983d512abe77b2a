package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	redisclient "github.com/apoliceplus/backend/internal/clients/redis"
	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/types"
)

// GoalProgress is the computed progress of one campaign. The evaluator in
// this file is the only code path that may write a goal's status,
// current_value and progress_percent columns; everything else is a caller.
type GoalProgress struct {
	GoalID       uuid.UUID           `json:"goal_id"`
	Mode         string              `json:"mode"`
	CurrentValue float64             `json:"current_value"`
	Percent      float64             `json:"percent"`
	Completed    bool                `json:"completed"`
	Criteria     []CriterionProgress `json:"criteria,omitempty"`
	ComputedAt   time.Time           `json:"computed_at"`
}

type CriterionProgress struct {
	Index        int     `json:"index"`
	Name         string  `json:"name,omitempty"`
	TargetKind   string  `json:"target_kind"`
	TargetValue  float64 `json:"target_value"`
	CurrentValue float64 `json:"current_value"`
	Percent      float64 `json:"percent"`
	Completed    bool    `json:"completed"`
}

type ProgressService interface {
	// GoalProgress returns the goal's progress, serving from the cache
	// when warm and recomputing (without a reconciliation write) otherwise.
	GoalProgress(ctx context.Context, userID, goalID uuid.UUID) (*GoalProgress, error)
	// RecomputeGoal recomputes progress and reconciles the stored status,
	// current value and percentage in a single update when they disagree.
	// Recomputing on unchanged inputs writes nothing.
	RecomputeGoal(ctx context.Context, goalID uuid.UUID) (*GoalProgress, bool, error)
	// RecomputeUserGoals re-audits every accepted active goal of a broker.
	RecomputeUserGoals(ctx context.Context, userID uuid.UUID) error
}

type progressService struct {
	db         *gorm.DB
	log        *logger.Logger
	goalRepo   repos.GoalRepo
	linkRepo   repos.PolicyGoalLinkRepo
	policyRepo repos.PolicyRepo
	prizeRepo  repos.ConqueredPrizeRepo
	cache      redisclient.ProgressCache // optional
}

func NewProgressService(
	db *gorm.DB,
	baseLog *logger.Logger,
	goalRepo repos.GoalRepo,
	linkRepo repos.PolicyGoalLinkRepo,
	policyRepo repos.PolicyRepo,
	prizeRepo repos.ConqueredPrizeRepo,
	cache redisclient.ProgressCache,
) ProgressService {
	return &progressService{
		db:         db,
		log:        baseLog.With("service", "ProgressService"),
		goalRepo:   goalRepo,
		linkRepo:   linkRepo,
		policyRepo: policyRepo,
		prizeRepo:  prizeRepo,
		cache:      cache,
	}
}

// ---- pure evaluation ----

func decodeCriteria(goal *types.Goal) ([]types.GoalCriterion, error) {
	if len(goal.Criteria) == 0 {
		return nil, nil
	}
	var criteria []types.GoalCriterion
	if err := json.Unmarshal(goal.Criteria, &criteria); err != nil {
		return nil, apierr.InvalidCriteria(fmt.Errorf("goal %s criteria: %w", goal.ID, err))
	}
	return criteria, nil
}

// policyCounts reports whether a policy may contribute to a goal at all:
// it must be active and created on or after the goal's acceptance.
// A goal that was never accepted counts nothing.
func policyCounts(goal *types.Goal, policy *types.Policy) bool {
	if policy == nil || policy.Status != types.PolicyStatusActive {
		return false
	}
	if goal.AcceptedAt == nil {
		return false
	}
	return !policy.CreatedAt.Before(*goal.AcceptedAt)
}

func criterionMatches(criterion types.GoalCriterion, policy *types.Policy) bool {
	if criterion.PolicyType != types.PolicyTypeAny && criterion.PolicyType != policy.Type {
		return false
	}
	if criterion.ContractType != types.ContractTypeEither && criterion.ContractType != policy.ContractType {
		return false
	}
	if criterion.MinimumPremium > 0 && policy.PremiumValue < criterion.MinimumPremium {
		return false
	}
	return true
}

func cappedPercent(current, target float64) float64 {
	pct := current / target * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func aggregate(kind string, policies []*types.Policy) float64 {
	var current float64
	for _, p := range policies {
		if kind == types.TargetKindCount {
			current++
		} else {
			current += p.PremiumValue
		}
	}
	return current
}

// EvaluateGoal computes a goal's progress from its linked policies. It is
// deterministic and performs no I/O.
//
// When a composite goal's criteria column cannot be decoded, the goal is
// evaluated as having zero criteria (never as a simple goal, which would
// instantly mis-credit it as complete) and the InvalidCriteria error is
// returned alongside that zero-criteria progress.
func EvaluateGoal(goal *types.Goal, linkedPolicies []*types.Policy) (*GoalProgress, error) {
	if goal == nil {
		return nil, apierr.NotFound(fmt.Errorf("goal is nil"))
	}

	var qualifying []*types.Policy
	for _, p := range linkedPolicies {
		if policyCounts(goal, p) {
			qualifying = append(qualifying, p)
		}
	}

	now := time.Now()

	if goal.Mode == types.GoalModeComposite {
		criteria, err := decodeCriteria(goal)
		if err != nil {
			// Zero criteria: incomplete by definition.
			return &GoalProgress{
				GoalID:     goal.ID,
				Mode:       goal.Mode,
				Completed:  false,
				ComputedAt: now,
			}, err
		}
		progress := evaluateComposite(goal, criteria, qualifying, now)
		return progress, nil
	}

	if goal.TargetValue <= 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("goal %s target must be positive, got %v", goal.ID, goal.TargetValue))
	}

	current := aggregate(goal.TargetKind, qualifying)
	return &GoalProgress{
		GoalID:       goal.ID,
		Mode:         types.GoalModeSimple,
		CurrentValue: current,
		Percent:      cappedPercent(current, goal.TargetValue),
		Completed:    current >= goal.TargetValue,
		ComputedAt:   now,
	}, nil
}

func evaluateComposite(goal *types.Goal, criteria []types.GoalCriterion, policies []*types.Policy, now time.Time) *GoalProgress {
	progress := &GoalProgress{
		GoalID:     goal.ID,
		Mode:       types.GoalModeComposite,
		ComputedAt: now,
	}
	if len(criteria) == 0 {
		// A composite goal without criteria can never complete.
		return progress
	}

	allComplete := true
	var percentSum float64
	var currentSum float64

	for i, criterion := range criteria {
		var matched []*types.Policy
		for _, p := range policies {
			if criterionMatches(criterion, p) {
				matched = append(matched, p)
			}
		}

		current := aggregate(criterion.TargetKind, matched)
		cp := CriterionProgress{
			Index:        i,
			Name:         criterion.Name,
			TargetKind:   criterion.TargetKind,
			TargetValue:  criterion.TargetValue,
			CurrentValue: current,
		}
		if criterion.TargetValue > 0 {
			cp.Percent = cappedPercent(current, criterion.TargetValue)
			cp.Completed = current >= criterion.TargetValue
		}
		if !cp.Completed {
			allComplete = false
		}
		percentSum += cp.Percent
		currentSum += current
		progress.Criteria = append(progress.Criteria, cp)
	}

	progress.CurrentValue = currentSum
	progress.Completed = allComplete
	// The averaged percentage is informative only; completion is decided
	// strictly by every criterion meeting its own target.
	if allComplete {
		progress.Percent = 100
	} else {
		progress.Percent = percentSum / float64(len(criteria))
	}
	return progress
}

// ---- service ----

func (s *progressService) GoalProgress(ctx context.Context, userID, goalID uuid.UUID) (*GoalProgress, error) {
	goal, err := s.goalRepo.GetByID(ctx, nil, goalID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load goal: %w", err))
	}
	if goal == nil || (userID != uuid.Nil && goal.UserID != userID) {
		return nil, apierr.NotFound(fmt.Errorf("goal %s not found", goalID))
	}

	// Cache entries are keyed by goal alone, so ownership must be settled
	// before the cache is consulted.
	if s.cache != nil {
		var cached GoalProgress
		hit, err := s.cache.Get(ctx, goalID, &cached)
		if err != nil {
			s.log.Warn("Progress cache read failed", "goal_id", goalID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	progress, err := s.computeFromStore(ctx, nil, goal)
	if err != nil {
		return progress, err
	}
	if s.cache != nil {
		if cErr := s.cache.Set(ctx, goalID, progress); cErr != nil {
			s.log.Warn("Progress cache write failed", "goal_id", goalID, "error", cErr)
		}
	}
	return progress, nil
}

func (s *progressService) computeFromStore(ctx context.Context, tx *gorm.DB, goal *types.Goal) (*GoalProgress, error) {
	links, err := s.linkRepo.ListByGoalID(ctx, tx, goal.ID, true)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load links: %w", err))
	}
	policyIDs := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		policyIDs = append(policyIDs, l.PolicyID)
	}
	policies, err := s.policyRepo.GetByIDs(ctx, tx, policyIDs)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load policies: %w", err))
	}
	return EvaluateGoal(goal, policies)
}

func (s *progressService) RecomputeGoal(ctx context.Context, goalID uuid.UUID) (*GoalProgress, bool, error) {
	var progress *GoalProgress
	var changed bool
	var evalErr error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.goalRepo.GetByID(ctx, tx, goalID)
		if err != nil {
			return apierr.Upstream(fmt.Errorf("load goal: %w", err))
		}
		if goal == nil {
			return apierr.NotFound(fmt.Errorf("goal %s not found", goalID))
		}

		progress, evalErr = s.computeFromStore(ctx, tx, goal)
		if progress == nil {
			return evalErr
		}

		newStatus := types.GoalStatusActive
		if progress.Completed {
			newStatus = types.GoalStatusCompleted
		}

		if goal.Status == newStatus &&
			goal.CurrentValue == progress.CurrentValue &&
			goal.ProgressPercent == progress.Percent {
			return nil // idempotent: nothing to reconcile
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":              newStatus,
			"current_value":       progress.CurrentValue,
			"progress_percent":    progress.Percent,
			"progress_updated_at": now,
			"updated_at":          now,
		}
		wasCompleted := goal.Status == types.GoalStatusCompleted
		if !wasCompleted && newStatus == types.GoalStatusCompleted {
			updates["completed_at"] = now
		}
		if wasCompleted && newStatus == types.GoalStatusActive {
			updates["completed_at"] = nil
		}
		if err := s.goalRepo.UpdateFields(ctx, tx, goal.ID, updates); err != nil {
			return apierr.Upstream(fmt.Errorf("reconcile goal: %w", err))
		}
		changed = true

		if !wasCompleted && newStatus == types.GoalStatusCompleted {
			if err := s.awardPrize(ctx, tx, goal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return progress, false, err
	}

	if changed && s.cache != nil {
		if cErr := s.cache.Invalidate(ctx, goalID); cErr != nil {
			s.log.Warn("Progress cache invalidation failed", "goal_id", goalID, "error", cErr)
		}
	}
	return progress, changed, evalErr
}

// awardPrize creates the conquered prize for a newly completed goal. The
// existence check keeps re-completions (active -> completed -> active ->
// completed) from awarding twice.
func (s *progressService) awardPrize(ctx context.Context, tx *gorm.DB, goal *types.Goal) error {
	if goal.PrizeQuantity <= 0 {
		return nil
	}
	exists, err := s.prizeRepo.ExistsForGoal(ctx, tx, goal.ID)
	if err != nil {
		return apierr.Upstream(fmt.Errorf("check prize: %w", err))
	}
	if exists {
		return nil
	}
	_, err = s.prizeRepo.Create(ctx, tx, []*types.ConqueredPrize{{
		ID:                 uuid.New(),
		UserID:             goal.UserID,
		GoalID:             goal.ID,
		Quantity:           goal.PrizeQuantity,
		EstimatedUnitValue: goal.PrizeUnitValue,
		Status:             types.PrizeStatusAvailable,
	}})
	if err != nil {
		return apierr.Upstream(fmt.Errorf("award prize: %w", err))
	}
	s.log.Info("Prize awarded", "goal_id", goal.ID, "user_id", goal.UserID, "quantity", goal.PrizeQuantity)
	return nil
}

func (s *progressService) RecomputeUserGoals(ctx context.Context, userID uuid.UUID) error {
	goals, err := s.goalRepo.ListAcceptedActive(ctx, nil, userID, time.Now())
	if err != nil {
		return apierr.Upstream(fmt.Errorf("list goals: %w", err))
	}
	for _, goal := range goals {
		if _, _, err := s.RecomputeGoal(ctx, goal.ID); err != nil {
			if apierr.Is(err, apierr.CodeInvalidCriteria) {
				s.log.Warn("Goal has undecodable criteria", "goal_id", goal.ID, "error", err)
				continue
			}
			return err
		}
	}
	return nil
}
