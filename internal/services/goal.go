package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/types"
)

type CreateGoalInput struct {
	Title          string
	Description    string
	Mode           string
	TargetKind     string
	TargetValue    float64
	Criteria       []types.GoalCriterion
	PrizeQuantity  int
	PrizeUnitValue float64
	StartsAt       *time.Time
	EndsAt         *time.Time
}

type GoalService interface {
	CreateGoal(ctx context.Context, userID uuid.UUID, in CreateGoalInput) (*types.Goal, error)
	GetGoal(ctx context.Context, userID, goalID uuid.UUID) (*types.Goal, error)
	ListGoals(ctx context.Context, userID uuid.UUID) ([]*types.Goal, error)
	// SetAcceptance records the broker's one-time accept or reject.
	SetAcceptance(ctx context.Context, userID, goalID uuid.UUID, accept bool) error
	// Deactivate soft-disables a goal; rows are never destroyed.
	Deactivate(ctx context.Context, userID, goalID uuid.UUID) error
	ListGoalLinks(ctx context.Context, userID, goalID uuid.UUID) ([]*types.PolicyGoalLink, error)
}

type goalService struct {
	db       *gorm.DB
	log      *logger.Logger
	goalRepo repos.GoalRepo
	linkRepo repos.PolicyGoalLinkRepo
}

func NewGoalService(db *gorm.DB, baseLog *logger.Logger, goalRepo repos.GoalRepo, linkRepo repos.PolicyGoalLinkRepo) GoalService {
	return &goalService{
		db:       db,
		log:      baseLog.With("service", "GoalService"),
		goalRepo: goalRepo,
		linkRepo: linkRepo,
	}
}

func validateCriterion(i int, c types.GoalCriterion) error {
	switch c.PolicyType {
	case types.PolicyTypeAuto, types.PolicyTypeResidential, types.PolicyTypeAny:
	default:
		return apierr.InvalidInput(fmt.Errorf("criterion %d: unknown policy type %q", i, c.PolicyType))
	}
	switch c.ContractType {
	case types.ContractTypeNew, types.ContractTypeRenewal, types.ContractTypeEither:
	default:
		return apierr.InvalidInput(fmt.Errorf("criterion %d: unknown contract type %q", i, c.ContractType))
	}
	switch c.TargetKind {
	case types.TargetKindValue, types.TargetKindCount:
	default:
		return apierr.InvalidInput(fmt.Errorf("criterion %d: unknown target kind %q", i, c.TargetKind))
	}
	if c.TargetValue <= 0 {
		return apierr.InvalidInput(fmt.Errorf("criterion %d: target must be positive", i))
	}
	if c.MinimumPremium < 0 {
		return apierr.InvalidInput(fmt.Errorf("criterion %d: negative minimum premium", i))
	}
	return nil
}

func (gs *goalService) CreateGoal(ctx context.Context, userID uuid.UUID, in CreateGoalInput) (*types.Goal, error) {
	if in.Title == "" {
		return nil, apierr.InvalidInput(fmt.Errorf("title required"))
	}
	switch in.Mode {
	case types.GoalModeSimple:
		switch in.TargetKind {
		case types.TargetKindValue, types.TargetKindCount:
		default:
			return nil, apierr.InvalidInput(fmt.Errorf("unknown target kind %q", in.TargetKind))
		}
		if in.TargetValue <= 0 {
			return nil, apierr.InvalidInput(fmt.Errorf("target must be positive"))
		}
	case types.GoalModeComposite:
		if len(in.Criteria) == 0 {
			return nil, apierr.InvalidInput(fmt.Errorf("composite goal requires at least one criterion"))
		}
		for i, c := range in.Criteria {
			if err := validateCriterion(i, c); err != nil {
				return nil, err
			}
		}
	default:
		return nil, apierr.InvalidInput(fmt.Errorf("unknown mode %q", in.Mode))
	}
	if in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt) {
		return nil, apierr.InvalidInput(fmt.Errorf("campaign window ends before it starts"))
	}
	if in.PrizeQuantity < 0 || in.PrizeUnitValue < 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("negative prize"))
	}

	goal := &types.Goal{
		ID:             uuid.New(),
		UserID:         userID,
		Title:          in.Title,
		Description:    in.Description,
		Mode:           in.Mode,
		TargetKind:     in.TargetKind,
		TargetValue:    in.TargetValue,
		Acceptance:     types.GoalAcceptancePending,
		Status:         types.GoalStatusActive,
		PrizeQuantity:  in.PrizeQuantity,
		PrizeUnitValue: in.PrizeUnitValue,
		StartsAt:       in.StartsAt,
		EndsAt:         in.EndsAt,
		IsActive:       true,
	}
	if in.Mode == types.GoalModeComposite {
		raw, err := json.Marshal(in.Criteria)
		if err != nil {
			return nil, apierr.InvalidCriteria(fmt.Errorf("encode criteria: %w", err))
		}
		goal.Criteria = raw
	}

	if _, err := gs.goalRepo.Create(ctx, nil, []*types.Goal{goal}); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("create goal: %w", err))
	}
	gs.log.Info("Goal created", "goal_id", goal.ID, "user_id", userID, "mode", goal.Mode)
	return goal, nil
}

func (gs *goalService) GetGoal(ctx context.Context, userID, goalID uuid.UUID) (*types.Goal, error) {
	goal, err := gs.goalRepo.GetByID(ctx, nil, goalID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load goal: %w", err))
	}
	if goal == nil || goal.UserID != userID {
		return nil, apierr.NotFound(fmt.Errorf("goal %s not found", goalID))
	}
	return goal, nil
}

func (gs *goalService) ListGoals(ctx context.Context, userID uuid.UUID) ([]*types.Goal, error) {
	goals, err := gs.goalRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("list goals: %w", err))
	}
	return goals, nil
}

func (gs *goalService) SetAcceptance(ctx context.Context, userID, goalID uuid.UUID, accept bool) error {
	goal, err := gs.GetGoal(ctx, userID, goalID)
	if err != nil {
		return err
	}
	if goal.Acceptance != types.GoalAcceptancePending {
		return apierr.Conflict(fmt.Errorf("goal already %s", goal.Acceptance))
	}

	acceptance := types.GoalAcceptanceRejected
	if accept {
		acceptance = types.GoalAcceptanceAccepted
	}
	affected, err := gs.goalRepo.SetAcceptance(ctx, nil, goalID, acceptance, time.Now())
	if err != nil {
		return apierr.Upstream(fmt.Errorf("set acceptance: %w", err))
	}
	if affected == 0 {
		return apierr.Conflict(fmt.Errorf("goal decision already made"))
	}
	gs.log.Info("Goal acceptance recorded", "goal_id", goalID, "acceptance", acceptance)
	return nil
}

func (gs *goalService) Deactivate(ctx context.Context, userID, goalID uuid.UUID) error {
	goal, err := gs.GetGoal(ctx, userID, goalID)
	if err != nil {
		return err
	}
	if !goal.IsActive {
		return nil
	}
	return gs.goalRepo.UpdateFields(ctx, nil, goalID, map[string]interface{}{
		"is_active":  false,
		"updated_at": time.Now(),
	})
}

func (gs *goalService) ListGoalLinks(ctx context.Context, userID, goalID uuid.UUID) ([]*types.PolicyGoalLink, error) {
	if _, err := gs.GetGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	links, err := gs.linkRepo.ListByGoalID(ctx, nil, goalID, false)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("list links: %w", err))
	}
	return links, nil
}
