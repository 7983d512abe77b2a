package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/services"
)

type PrizeHandler struct {
	prizeService services.PrizeService
}

func NewPrizeHandler(prizeService services.PrizeService) *PrizeHandler {
	return &PrizeHandler{prizeService: prizeService}
}

func (ph *PrizeHandler) ListPrizes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	prizes, err := ph.prizeService.ListPrizes(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"prizes": prizes})
}

func (ph *PrizeHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	balance, err := ph.prizeService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"balance": balance})
}
