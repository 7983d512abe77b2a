package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/types"
)

type UserService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateBrokerage(ctx context.Context, userID uuid.UUID, cnpj, brokerageName string) error
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{
		db:       db,
		log:      baseLog.With("service", "UserService"),
		userRepo: userRepo,
	}
}

func (us *userService) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	users, err := us.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load user: %w", err))
	}
	if len(users) == 0 {
		return nil, apierr.NotFound(fmt.Errorf("user %s not found", userID))
	}
	return users[0], nil
}

func (us *userService) UpdateBrokerage(ctx context.Context, userID uuid.UUID, cnpj, brokerageName string) error {
	if cnpj == "" && brokerageName == "" {
		return apierr.InvalidInput(fmt.Errorf("nothing to update"))
	}
	updates := map[string]interface{}{}
	if cnpj != "" {
		updates["cnpj"] = cnpj
	}
	if brokerageName != "" {
		updates["brokerage_name"] = brokerageName
	}
	if err := us.userRepo.UpdateFields(ctx, nil, userID, updates); err != nil {
		return apierr.Upstream(fmt.Errorf("update user: %w", err))
	}
	return nil
}
