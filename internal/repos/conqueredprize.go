package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/types"
)

type ConqueredPrizeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, prizes []*types.ConqueredPrize) ([]*types.ConqueredPrize, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ConqueredPrize, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ConqueredPrize, error)
	ExistsForGoal(ctx context.Context, tx *gorm.DB, goalID uuid.UUID) (bool, error)
	// SumAvailableValue totals quantity * estimated_unit_value over the
	// user's available prizes.
	SumAvailableValue(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error)
	// MarkRedeemed flips an available prize to redeemed, pointing at the
	// consuming order. The status guard lives in the WHERE clause so two
	// concurrent redemptions cannot both win; returns affected rows.
	MarkRedeemed(ctx context.Context, tx *gorm.DB, id uuid.UUID, orderID uuid.UUID) (int64, error)
}

type conqueredPrizeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConqueredPrizeRepo(db *gorm.DB, baseLog *logger.Logger) ConqueredPrizeRepo {
	return &conqueredPrizeRepo{db: db, log: baseLog.With("repo", "ConqueredPrizeRepo")}
}

func (r *conqueredPrizeRepo) Create(ctx context.Context, tx *gorm.DB, prizes []*types.ConqueredPrize) ([]*types.ConqueredPrize, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(prizes) == 0 {
		return []*types.ConqueredPrize{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&prizes).Error; err != nil {
		return nil, err
	}
	return prizes, nil
}

func (r *conqueredPrizeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ConqueredPrize, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var prize types.ConqueredPrize
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&prize).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prize, nil
}

func (r *conqueredPrizeRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ConqueredPrize, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ConqueredPrize
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

func (r *conqueredPrizeRepo) ExistsForGoal(ctx context.Context, tx *gorm.DB, goalID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ConqueredPrize{}).
		Where("goal_id = ?", goalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *conqueredPrizeRepo) SumAvailableValue(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var total float64
	err := transaction.WithContext(ctx).
		Model(&types.ConqueredPrize{}).
		Select("COALESCE(SUM(quantity * estimated_unit_value), 0)").
		Where("user_id = ? AND status = ?", userID, types.PrizeStatusAvailable).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *conqueredPrizeRepo) MarkRedeemed(ctx context.Context, tx *gorm.DB, id uuid.UUID, orderID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ConqueredPrize{}).
		Where("id = ? AND status = ?", id, types.PrizeStatusAvailable).
		Updates(map[string]interface{}{
			"status":              types.PrizeStatusRedeemed,
			"redemption_order_id": orderID,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
