package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/services"
	"github.com/apoliceplus/backend/internal/types"
)

type RedemptionHandler struct {
	redemptionService services.RedemptionService
}

func NewRedemptionHandler(redemptionService services.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptionService: redemptionService}
}

func (rh *RedemptionHandler) CreateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	var req struct {
		PrizeID  uuid.UUID `json:"prize_id"`
		Quantity int       `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	order, err := rh.redemptionService.CreateOrder(c.Request.Context(), userID, req.PrizeID, req.Quantity)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"order": order})
}

func (rh *RedemptionHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	orders, err := rh.redemptionService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"orders": orders})
}

func (rh *RedemptionHandler) GetOrder(c *gin.Context) {
	userID, orderID, ok := rh.userAndOrderID(c)
	if !ok {
		return
	}
	order, err := rh.redemptionService.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"order": order})
}

func (rh *RedemptionHandler) CancelOrder(c *gin.Context) {
	userID, orderID, ok := rh.userAndOrderID(c)
	if !ok {
		return
	}
	order, err := rh.redemptionService.CancelOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"order": order})
}

// Operator transitions. These are keyed by order id only; operator
// authorization beyond a valid session is out of scope here.

func (rh *RedemptionHandler) ApproveOrder(c *gin.Context) {
	rh.operatorTransition(c, types.OrderStatusApproved)
}

func (rh *RedemptionHandler) RejectOrder(c *gin.Context) {
	rh.operatorTransition(c, types.OrderStatusRejected)
}

func (rh *RedemptionHandler) DeliverOrder(c *gin.Context) {
	rh.operatorTransition(c, types.OrderStatusDelivered)
}

func (rh *RedemptionHandler) operatorTransition(c *gin.Context, to string) {
	if _, ok := currentUserID(c); !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid order id"))
		return
	}
	var order *types.RedemptionOrder
	switch to {
	case types.OrderStatusApproved:
		order, err = rh.redemptionService.ApproveOrder(c.Request.Context(), orderID)
	case types.OrderStatusRejected:
		order, err = rh.redemptionService.RejectOrder(c.Request.Context(), orderID)
	case types.OrderStatusDelivered:
		order, err = rh.redemptionService.DeliverOrder(c.Request.Context(), orderID)
	default:
		err = apierr.InvalidInput(fmt.Errorf("unknown transition %q", to))
	}
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"order": order})
}

func (rh *RedemptionHandler) userAndOrderID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid order id"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, orderID, true
}
