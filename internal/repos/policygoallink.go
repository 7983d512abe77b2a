package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/types"
)

type PolicyGoalLinkRepo interface {
	// Upsert creates the link for (policy, goal) or refreshes the verdict
	// fields of the existing row. Links are never deleted.
	Upsert(ctx context.Context, tx *gorm.DB, link *types.PolicyGoalLink) error
	ListByGoalID(ctx context.Context, tx *gorm.DB, goalID uuid.UUID, activeOnly bool) ([]*types.PolicyGoalLink, error)
	ListByPolicyID(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) ([]*types.PolicyGoalLink, error)
}

type policyGoalLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyGoalLinkRepo(db *gorm.DB, baseLog *logger.Logger) PolicyGoalLinkRepo {
	return &policyGoalLinkRepo{db: db, log: baseLog.With("repo", "PolicyGoalLinkRepo")}
}

func (r *policyGoalLinkRepo) Upsert(ctx context.Context, tx *gorm.DB, link *types.PolicyGoalLink) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if link == nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "policy_id"}, {Name: "goal_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_active", "confidence_score", "justification", "matched_automatically", "updated_at",
			}),
		}).
		Create(link).Error
}

func (r *policyGoalLinkRepo) ListByGoalID(ctx context.Context, tx *gorm.DB, goalID uuid.UUID, activeOnly bool) ([]*types.PolicyGoalLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PolicyGoalLink
	if goalID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).Where("goal_id = ?", goalID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *policyGoalLinkRepo) ListByPolicyID(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) ([]*types.PolicyGoalLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PolicyGoalLink
	if policyID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
