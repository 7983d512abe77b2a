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

// PrizeBalance is the broker's redeemable position: what their completed
// campaigns earned, minus what redemption orders already claim.
type PrizeBalance struct {
	AvailableValue   float64 `json:"available_value"`
	OutstandingValue float64 `json:"outstanding_value"`
	Balance          float64 `json:"balance"`
}

type PrizeService interface {
	ListPrizes(ctx context.Context, userID uuid.UUID) ([]*types.ConqueredPrize, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*PrizeBalance, error)
}

type prizeService struct {
	db        *gorm.DB
	log       *logger.Logger
	prizeRepo repos.ConqueredPrizeRepo
	orderRepo repos.RedemptionOrderRepo
}

func NewPrizeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	prizeRepo repos.ConqueredPrizeRepo,
	orderRepo repos.RedemptionOrderRepo,
) PrizeService {
	return &prizeService{
		db:        db,
		log:       baseLog.With("service", "PrizeService"),
		prizeRepo: prizeRepo,
		orderRepo: orderRepo,
	}
}

func (ps *prizeService) ListPrizes(ctx context.Context, userID uuid.UUID) ([]*types.ConqueredPrize, error) {
	prizes, err := ps.prizeRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("list prizes: %w", err))
	}
	return prizes, nil
}

func (ps *prizeService) GetBalance(ctx context.Context, userID uuid.UUID) (*PrizeBalance, error) {
	var balance PrizeBalance
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		available, err := ps.prizeRepo.SumAvailableValue(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("sum available: %w", err)
		}
		outstanding, err := ps.orderRepo.SumOutstandingValue(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("sum outstanding: %w", err)
		}
		balance = PrizeBalance{
			AvailableValue:   available,
			OutstandingValue: outstanding,
			Balance:          available - outstanding,
		}
		return nil
	})
	if err != nil {
		return nil, apierr.Upstream(err)
	}
	return &balance, nil
}
