package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/types"
)

type PolicyRepo interface {
	Create(ctx context.Context, tx *gorm.DB, policies []*types.Policy) ([]*types.Policy, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Policy, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Policy, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Policy, error)
	NumberExists(ctx context.Context, tx *gorm.DB, userID uuid.UUID, number string) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type policyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyRepo(db *gorm.DB, baseLog *logger.Logger) PolicyRepo {
	return &policyRepo{db: db, log: baseLog.With("repo", "PolicyRepo")}
}

func (r *policyRepo) Create(ctx context.Context, tx *gorm.DB, policies []*types.Policy) ([]*types.Policy, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(policies) == 0 {
		return []*types.Policy{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *policyRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Policy, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var policy types.Policy
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Policy, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Policy
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *policyRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Policy, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Policy
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *policyRepo) NumberExists(ctx context.Context, tx *gorm.DB, userID uuid.UUID, number string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Policy{}).
		Where("user_id = ? AND number = ?", userID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *policyRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Policy{}).
		Where("id = ?", id).
		Updates(updates).Error
}
