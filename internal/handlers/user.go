package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/requestdata"
	"github.com/apoliceplus/backend/internal/services"
)

// currentUserID pulls the authenticated broker's id out of the request
// context populated by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return rd.UserID, true
}

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	user, err := uh.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UpdateBrokerage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	var req struct {
		CNPJ          string `json:"cnpj"`
		BrokerageName string `json:"brokerage_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	if err := uh.userService.UpdateBrokerage(c.Request.Context(), userID, req.CNPJ, req.BrokerageName); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "brokerage updated"})
}
