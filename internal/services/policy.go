package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/types"
)

type CreatePolicyInput struct {
	Number       string
	Type         string
	ContractType string
	PremiumValue float64
	IssuedAt     *time.Time
}

type PolicyService interface {
	// RegisterPolicy validates and stores a new policy, then evaluates it
	// against every accepted campaign of the broker.
	RegisterPolicy(ctx context.Context, userID uuid.UUID, in CreatePolicyInput) (*types.Policy, error)
	GetPolicy(ctx context.Context, userID, policyID uuid.UUID) (*types.Policy, error)
	ListPolicies(ctx context.Context, userID uuid.UUID) ([]*types.Policy, error)
	CancelPolicy(ctx context.Context, userID, policyID uuid.UUID) error
	ListPolicyLinks(ctx context.Context, userID, policyID uuid.UUID) ([]*types.PolicyGoalLink, error)
}

type policyService struct {
	db         *gorm.DB
	log        *logger.Logger
	policyRepo repos.PolicyRepo
	linkRepo   repos.PolicyGoalLinkRepo
	matcher    PolicyMatchService
	progress   ProgressService
}

func NewPolicyService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policyRepo repos.PolicyRepo,
	linkRepo repos.PolicyGoalLinkRepo,
	matcher PolicyMatchService,
	progress ProgressService,
) PolicyService {
	return &policyService{
		db:         db,
		log:        baseLog.With("service", "PolicyService"),
		policyRepo: policyRepo,
		linkRepo:   linkRepo,
		matcher:    matcher,
		progress:   progress,
	}
}

func (ps *policyService) RegisterPolicy(ctx context.Context, userID uuid.UUID, in CreatePolicyInput) (*types.Policy, error) {
	in.Number = strings.TrimSpace(in.Number)
	if in.Number == "" {
		return nil, apierr.InvalidInput(fmt.Errorf("policy number required"))
	}
	switch in.Type {
	case types.PolicyTypeAuto, types.PolicyTypeResidential:
	default:
		return nil, apierr.InvalidInput(fmt.Errorf("unknown policy type %q", in.Type))
	}
	switch in.ContractType {
	case types.ContractTypeNew, types.ContractTypeRenewal:
	default:
		return nil, apierr.InvalidInput(fmt.Errorf("unknown contract type %q", in.ContractType))
	}
	if in.PremiumValue <= 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("premium must be positive"))
	}
	exists, err := ps.policyRepo.NumberExists(ctx, nil, userID, in.Number)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("check policy number: %w", err))
	}
	if exists {
		return nil, apierr.Conflict(fmt.Errorf("policy %s already registered", in.Number))
	}

	issuedAt := time.Now()
	if in.IssuedAt != nil {
		issuedAt = *in.IssuedAt
	}
	policy := &types.Policy{
		ID:           uuid.New(),
		UserID:       userID,
		Number:       in.Number,
		Type:         in.Type,
		ContractType: in.ContractType,
		PremiumValue: in.PremiumValue,
		Status:       types.PolicyStatusActive,
		IssuedAt:     issuedAt,
	}
	if _, err := ps.policyRepo.Create(ctx, nil, []*types.Policy{policy}); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("create policy: %w", err))
	}
	ps.log.Info("Policy registered", "policy_id", policy.ID, "user_id", userID, "number", policy.Number)

	// The policy row exists either way; matching failures are surfaced but
	// never roll the registration back.
	if err := ps.matcher.EvaluatePolicy(ctx, policy); err != nil {
		ps.log.Error("Policy campaign evaluation failed", "policy_id", policy.ID, "error", err)
		return policy, err
	}
	return policy, nil
}

func (ps *policyService) GetPolicy(ctx context.Context, userID, policyID uuid.UUID) (*types.Policy, error) {
	policy, err := ps.policyRepo.GetByID(ctx, nil, policyID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load policy: %w", err))
	}
	if policy == nil || policy.UserID != userID {
		return nil, apierr.NotFound(fmt.Errorf("policy %s not found", policyID))
	}
	return policy, nil
}

func (ps *policyService) ListPolicies(ctx context.Context, userID uuid.UUID) ([]*types.Policy, error) {
	policies, err := ps.policyRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("list policies: %w", err))
	}
	return policies, nil
}

func (ps *policyService) CancelPolicy(ctx context.Context, userID, policyID uuid.UUID) error {
	policy, err := ps.GetPolicy(ctx, userID, policyID)
	if err != nil {
		return err
	}
	if policy.Status == types.PolicyStatusCancelled {
		return apierr.Conflict(fmt.Errorf("policy already cancelled"))
	}
	if err := ps.policyRepo.UpdateFields(ctx, nil, policyID, map[string]interface{}{
		"status":     types.PolicyStatusCancelled,
		"updated_at": time.Now(),
	}); err != nil {
		return apierr.Upstream(fmt.Errorf("cancel policy: %w", err))
	}

	// A cancelled policy stops counting; linked campaigns are re-audited.
	links, err := ps.linkRepo.ListByPolicyID(ctx, nil, policyID)
	if err != nil {
		return apierr.Upstream(fmt.Errorf("list links: %w", err))
	}
	for _, link := range links {
		if !link.IsActive {
			continue
		}
		if _, _, err := ps.progress.RecomputeGoal(ctx, link.GoalID); err != nil {
			if apierr.Is(err, apierr.CodeInvalidCriteria) {
				continue
			}
			return err
		}
	}
	return nil
}

func (ps *policyService) ListPolicyLinks(ctx context.Context, userID, policyID uuid.UUID) ([]*types.PolicyGoalLink, error) {
	if _, err := ps.GetPolicy(ctx, userID, policyID); err != nil {
		return nil, err
	}
	links, err := ps.linkRepo.ListByPolicyID(ctx, nil, policyID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("list links: %w", err))
	}
	return links, nil
}
