package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/services"
)

type PolicyHandler struct {
	policyService services.PolicyService
}

func NewPolicyHandler(policyService services.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

func (ph *PolicyHandler) RegisterPolicy(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	var req struct {
		Number       string     `json:"number"`
		Type         string     `json:"type"`
		ContractType string     `json:"contract_type"`
		PremiumValue float64    `json:"premium_value"`
		IssuedAt     *time.Time `json:"issued_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	policy, err := ph.policyService.RegisterPolicy(c.Request.Context(), userID, services.CreatePolicyInput{
		Number:       req.Number,
		Type:         req.Type,
		ContractType: req.ContractType,
		PremiumValue: req.PremiumValue,
		IssuedAt:     req.IssuedAt,
	})
	if err != nil {
		// The policy row may exist even when campaign matching failed;
		// return it alongside the error classification.
		if policy != nil {
			ae := apierr.From(err)
			c.JSON(http.StatusCreated, gin.H{"policy": policy, "warning": gin.H{"message": ae.Error(), "code": ae.Code}})
			return
		}
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"policy": policy})
}

func (ph *PolicyHandler) ListPolicies(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	policies, err := ph.policyService.ListPolicies(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"policies": policies})
}

func (ph *PolicyHandler) GetPolicy(c *gin.Context) {
	userID, policyID, ok := ph.userAndPolicyID(c)
	if !ok {
		return
	}
	policy, err := ph.policyService.GetPolicy(c.Request.Context(), userID, policyID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"policy": policy})
}

func (ph *PolicyHandler) CancelPolicy(c *gin.Context) {
	userID, policyID, ok := ph.userAndPolicyID(c)
	if !ok {
		return
	}
	if err := ph.policyService.CancelPolicy(c.Request.Context(), userID, policyID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "policy cancelled"})
}

func (ph *PolicyHandler) ListPolicyLinks(c *gin.Context) {
	userID, policyID, ok := ph.userAndPolicyID(c)
	if !ok {
		return
	}
	links, err := ph.policyService.ListPolicyLinks(c.Request.Context(), userID, policyID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"links": links})
}

func (ph *PolicyHandler) userAndPolicyID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return uuid.Nil, uuid.Nil, false
	}
	policyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid policy id"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, policyID, true
}
