package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/types"
)

type GoalRepo interface {
	Create(ctx context.Context, tx *gorm.DB, goals []*types.Goal) ([]*types.Goal, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Goal, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Goal, error)
	// ListAcceptedActive returns the user's accepted, non-deactivated goals
	// whose date window contains the given instant.
	ListAcceptedActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) ([]*types.Goal, error)
	// ListAllAcceptedActive is the cross-user variant used by the
	// background re-audit.
	ListAllAcceptedActive(ctx context.Context, tx *gorm.DB, at time.Time) ([]*types.Goal, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	// SetAcceptance records the broker's one-time accept/reject decision.
	// Returns gorm.ErrRecordNotFound semantics via affected row count.
	SetAcceptance(ctx context.Context, tx *gorm.DB, id uuid.UUID, acceptance string, at time.Time) (int64, error)
}

type goalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGoalRepo(db *gorm.DB, baseLog *logger.Logger) GoalRepo {
	return &goalRepo{db: db, log: baseLog.With("repo", "GoalRepo")}
}

func (r *goalRepo) Create(ctx context.Context, tx *gorm.DB, goals []*types.Goal) ([]*types.Goal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(goals) == 0 {
		return []*types.Goal{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Goal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var goal types.Goal
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &goal, nil
}

func (r *goalRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Goal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Goal
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

func (r *goalRepo) ListAcceptedActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) ([]*types.Goal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Goal
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND acceptance = ? AND is_active = ?", userID, types.GoalAcceptanceAccepted, true).
		Where("starts_at IS NULL OR starts_at <= ?", at).
		Where("ends_at IS NULL OR ends_at >= ?", at).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *goalRepo) ListAllAcceptedActive(ctx context.Context, tx *gorm.DB, at time.Time) ([]*types.Goal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Goal
	if err := transaction.WithContext(ctx).
		Where("acceptance = ? AND is_active = ?", types.GoalAcceptanceAccepted, true).
		Where("starts_at IS NULL OR starts_at <= ?", at).
		Where("ends_at IS NULL OR ends_at >= ?", at).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *goalRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Goal{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *goalRepo) SetAcceptance(ctx context.Context, tx *gorm.DB, id uuid.UUID, acceptance string, at time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"acceptance": acceptance,
		"updated_at": at,
	}
	if acceptance == types.GoalAcceptanceAccepted {
		updates["accepted_at"] = at
	}
	// Guard keeps the decision one-shot.
	res := transaction.WithContext(ctx).
		Model(&types.Goal{}).
		Where("id = ? AND acceptance = ?", id, types.GoalAcceptancePending).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
