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

type RedemptionOrderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, orders []*types.RedemptionOrder) ([]*types.RedemptionOrder, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RedemptionOrder, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RedemptionOrder, error)
	// SumOutstandingValue totals the user's pending and approved order
	// values, i.e. the part of the balance already spoken for.
	SumOutstandingValue(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error)
	// Transition moves an order from one status to another with the source
	// status guarded in the WHERE clause; returns affected rows so callers
	// can distinguish a lost race or wrong-state attempt from success.
	Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string, stamps map[string]interface{}) (int64, error)
}

type redemptionOrderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRedemptionOrderRepo(db *gorm.DB, baseLog *logger.Logger) RedemptionOrderRepo {
	return &redemptionOrderRepo{db: db, log: baseLog.With("repo", "RedemptionOrderRepo")}
}

func (r *redemptionOrderRepo) Create(ctx context.Context, tx *gorm.DB, orders []*types.RedemptionOrder) ([]*types.RedemptionOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(orders) == 0 {
		return []*types.RedemptionOrder{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *redemptionOrderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RedemptionOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var order types.RedemptionOrder
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *redemptionOrderRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RedemptionOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RedemptionOrder
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

func (r *redemptionOrderRepo) SumOutstandingValue(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var total float64
	err := transaction.WithContext(ctx).
		Model(&types.RedemptionOrder{}).
		Select("COALESCE(SUM(total_value), 0)").
		Where("user_id = ? AND status IN ?", userID, []string{types.OrderStatusPending, types.OrderStatusApproved}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *redemptionOrderRepo) Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string, stamps map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range stamps {
		updates[k] = v
	}
	res := transaction.WithContext(ctx).
		Model(&types.RedemptionOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
