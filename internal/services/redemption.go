package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/types"
)

type RedemptionService interface {
	// CreateOrder redeems a conquered prize: the order insert and the
	// prize status flip happen in one transaction, with the prize's
	// availability guarded at the database so concurrent redemptions of
	// the same prize cannot both succeed.
	CreateOrder(ctx context.Context, userID, prizeID uuid.UUID, quantity int) (*types.RedemptionOrder, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*types.RedemptionOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*types.RedemptionOrder, error)
	// CancelOrder is the broker-initiated exit, valid only while pending.
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*types.RedemptionOrder, error)
	// Operator transitions.
	ApproveOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error)
	RejectOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error)
	DeliverOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error)
}

// ValidateOrderTransition reports whether an order may move between the
// two statuses. Pending orders can be decided or cancelled; approved
// orders can only be delivered; everything else is terminal.
func ValidateOrderTransition(from, to string) error {
	allowed := map[string][]string{
		types.OrderStatusPending:  {types.OrderStatusApproved, types.OrderStatusRejected, types.OrderStatusCancelled},
		types.OrderStatusApproved: {types.OrderStatusDelivered},
	}
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return apierr.Conflict(fmt.Errorf("order cannot move from %s to %s", from, to))
}

type redemptionService struct {
	db        *gorm.DB
	log       *logger.Logger
	prizeRepo repos.ConqueredPrizeRepo
	orderRepo repos.RedemptionOrderRepo
}

func NewRedemptionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	prizeRepo repos.ConqueredPrizeRepo,
	orderRepo repos.RedemptionOrderRepo,
) RedemptionService {
	return &redemptionService{
		db:        db,
		log:       baseLog.With("service", "RedemptionService"),
		prizeRepo: prizeRepo,
		orderRepo: orderRepo,
	}
}

func (rs *redemptionService) CreateOrder(ctx context.Context, userID, prizeID uuid.UUID, quantity int) (*types.RedemptionOrder, error) {
	if quantity <= 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("quantity must be positive"))
	}

	var order *types.RedemptionOrder
	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prize, err := rs.prizeRepo.GetByID(ctx, tx, prizeID)
		if err != nil {
			return apierr.Upstream(fmt.Errorf("load prize: %w", err))
		}
		if prize == nil || prize.UserID != userID {
			return apierr.NotFound(fmt.Errorf("prize %s not found", prizeID))
		}
		if prize.Status != types.PrizeStatusAvailable {
			return apierr.InvalidInput(fmt.Errorf("prize is %s, not available", prize.Status))
		}
		if quantity > prize.Quantity {
			return apierr.InvalidInput(fmt.Errorf("requested %d of %d available units", quantity, prize.Quantity))
		}
		totalValue := float64(quantity) * prize.EstimatedUnitValue

		available, err := rs.prizeRepo.SumAvailableValue(ctx, tx, userID)
		if err != nil {
			return apierr.Upstream(fmt.Errorf("sum available: %w", err))
		}
		outstanding, err := rs.orderRepo.SumOutstandingValue(ctx, tx, userID)
		if err != nil {
			return apierr.Upstream(fmt.Errorf("sum outstanding: %w", err))
		}
		if available-outstanding < totalValue {
			return apierr.InvalidInput(fmt.Errorf("insufficient balance: %.2f available, order worth %.2f", available-outstanding, totalValue))
		}

		order = &types.RedemptionOrder{
			ID:         uuid.New(),
			UserID:     userID,
			Quantity:   quantity,
			TotalValue: totalValue,
			Status:     types.OrderStatusPending,
		}
		if _, err := rs.orderRepo.Create(ctx, tx, []*types.RedemptionOrder{order}); err != nil {
			return apierr.Upstream(fmt.Errorf("create order: %w", err))
		}
		affected, err := rs.prizeRepo.MarkRedeemed(ctx, tx, prizeID, order.ID)
		if err != nil {
			return apierr.Upstream(fmt.Errorf("mark prize redeemed: %w", err))
		}
		if affected == 0 {
			// Someone else redeemed the prize between our read and this
			// write; roll everything back.
			return apierr.Conflict(fmt.Errorf("prize %s was redeemed concurrently", prizeID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rs.log.Info("Redemption order created", "order_id", order.ID, "user_id", userID, "total_value", order.TotalValue)
	return order, nil
}

func (rs *redemptionService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*types.RedemptionOrder, error) {
	order, err := rs.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load order: %w", err))
	}
	if order == nil || order.UserID != userID {
		return nil, apierr.NotFound(fmt.Errorf("order %s not found", orderID))
	}
	return order, nil
}

func (rs *redemptionService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*types.RedemptionOrder, error) {
	orders, err := rs.orderRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

func (rs *redemptionService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*types.RedemptionOrder, error) {
	order, err := rs.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return rs.transition(ctx, order, types.OrderStatusPending, types.OrderStatusCancelled, map[string]interface{}{
		"cancelled_at": now,
	})
}

func (rs *redemptionService) ApproveOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error) {
	order, err := rs.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return rs.transition(ctx, order, types.OrderStatusPending, types.OrderStatusApproved, map[string]interface{}{
		"decided_at": now,
	})
}

func (rs *redemptionService) RejectOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error) {
	order, err := rs.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return rs.transition(ctx, order, types.OrderStatusPending, types.OrderStatusRejected, map[string]interface{}{
		"decided_at": now,
	})
}

func (rs *redemptionService) DeliverOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error) {
	order, err := rs.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return rs.transition(ctx, order, types.OrderStatusApproved, types.OrderStatusDelivered, map[string]interface{}{
		"delivered_at": now,
	})
}

func (rs *redemptionService) loadOrder(ctx context.Context, orderID uuid.UUID) (*types.RedemptionOrder, error) {
	order, err := rs.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, apierr.NotFound(fmt.Errorf("order %s not found", orderID))
	}
	return order, nil
}

func (rs *redemptionService) transition(ctx context.Context, order *types.RedemptionOrder, from, to string, stamps map[string]interface{}) (*types.RedemptionOrder, error) {
	if err := ValidateOrderTransition(order.Status, to); err != nil {
		return nil, err
	}
	affected, err := rs.orderRepo.Transition(ctx, nil, order.ID, from, to, stamps)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("transition order: %w", err))
	}
	if affected == 0 {
		return nil, apierr.Conflict(fmt.Errorf("order %s is no longer %s", order.ID, from))
	}
	updated, err := rs.orderRepo.GetByID(ctx, nil, order.ID)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("reload order: %w", err))
	}
	rs.log.Info("Redemption order transitioned", "order_id", order.ID, "from", from, "to", to)
	return updated, nil
}
