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

type PasswordResetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, resets []*types.PasswordReset) ([]*types.PasswordReset, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.PasswordReset, error)
	MarkUsed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type passwordResetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPasswordResetRepo(db *gorm.DB, baseLog *logger.Logger) PasswordResetRepo {
	return &passwordResetRepo{db: db, log: baseLog.With("repo", "PasswordResetRepo")}
}

func (r *passwordResetRepo) Create(ctx context.Context, tx *gorm.DB, resets []*types.PasswordReset) ([]*types.PasswordReset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(resets) == 0 {
		return []*types.PasswordReset{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&resets).Error; err != nil {
		return nil, err
	}
	return resets, nil
}

func (r *passwordResetRepo) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.PasswordReset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if token == "" {
		return nil, nil
	}
	var result types.PasswordReset
	err := transaction.WithContext(ctx).
		Where("token = ?", token).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *passwordResetRepo) MarkUsed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.PasswordReset{}).
		Where("id = ? AND used_at IS NULL", id).
		Updates(map[string]interface{}{"used_at": now, "updated_at": now}).Error
}
