package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/services"
	"github.com/apoliceplus/backend/internal/types"
)

type GoalHandler struct {
	goalService     services.GoalService
	progressService services.ProgressService
}

func NewGoalHandler(goalService services.GoalService, progressService services.ProgressService) *GoalHandler {
	return &GoalHandler{goalService: goalService, progressService: progressService}
}

func (gh *GoalHandler) CreateGoal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	var req struct {
		Title          string                `json:"title"`
		Description    string                `json:"description"`
		Mode           string                `json:"mode"`
		TargetKind     string                `json:"target_kind"`
		TargetValue    float64               `json:"target_value"`
		Criteria       []types.GoalCriterion `json:"criteria"`
		PrizeQuantity  int                   `json:"prize_quantity"`
		PrizeUnitValue float64               `json:"prize_unit_value"`
		StartsAt       *time.Time            `json:"starts_at"`
		EndsAt         *time.Time            `json:"ends_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	goal, err := gh.goalService.CreateGoal(c.Request.Context(), userID, services.CreateGoalInput{
		Title:          req.Title,
		Description:    req.Description,
		Mode:           req.Mode,
		TargetKind:     req.TargetKind,
		TargetValue:    req.TargetValue,
		Criteria:       req.Criteria,
		PrizeQuantity:  req.PrizeQuantity,
		PrizeUnitValue: req.PrizeUnitValue,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"goal": goal})
}

func (gh *GoalHandler) ListGoals(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	goals, err := gh.goalService.ListGoals(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"goals": goals})
}

func (gh *GoalHandler) GetGoal(c *gin.Context) {
	userID, goalID, ok := gh.userAndGoalID(c)
	if !ok {
		return
	}
	goal, err := gh.goalService.GetGoal(c.Request.Context(), userID, goalID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"goal": goal})
}

func (gh *GoalHandler) AcceptGoal(c *gin.Context) {
	gh.decide(c, true)
}

func (gh *GoalHandler) RejectGoal(c *gin.Context) {
	gh.decide(c, false)
}

func (gh *GoalHandler) decide(c *gin.Context, accept bool) {
	userID, goalID, ok := gh.userAndGoalID(c)
	if !ok {
		return
	}
	if err := gh.goalService.SetAcceptance(c.Request.Context(), userID, goalID, accept); err != nil {
		RespondAppError(c, err)
		return
	}
	status := types.GoalAcceptanceRejected
	if accept {
		status = types.GoalAcceptanceAccepted
	}
	RespondOK(c, gin.H{"acceptance": status})
}

func (gh *GoalHandler) DeactivateGoal(c *gin.Context) {
	userID, goalID, ok := gh.userAndGoalID(c)
	if !ok {
		return
	}
	if err := gh.goalService.Deactivate(c.Request.Context(), userID, goalID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "goal deactivated"})
}

func (gh *GoalHandler) GetProgress(c *gin.Context) {
	userID, goalID, ok := gh.userAndGoalID(c)
	if !ok {
		return
	}
	progress, err := gh.progressService.GoalProgress(c.Request.Context(), userID, goalID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

func (gh *GoalHandler) RecomputeGoal(c *gin.Context) {
	userID, goalID, ok := gh.userAndGoalID(c)
	if !ok {
		return
	}
	// Ownership check before touching another broker's campaign.
	if _, err := gh.goalService.GetGoal(c.Request.Context(), userID, goalID); err != nil {
		RespondAppError(c, err)
		return
	}
	progress, changed, err := gh.progressService.RecomputeGoal(c.Request.Context(), goalID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": progress, "changed": changed})
}

func (gh *GoalHandler) ListGoalLinks(c *gin.Context) {
	userID, goalID, ok := gh.userAndGoalID(c)
	if !ok {
		return
	}
	links, err := gh.goalService.ListGoalLinks(c.Request.Context(), userID, goalID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"links": links})
}

func (gh *GoalHandler) userAndGoalID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return uuid.Nil, uuid.Nil, false
	}
	goalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid goal id"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, goalID, true
}
