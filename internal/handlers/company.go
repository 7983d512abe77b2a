package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/services"
)

type CompanyHandler struct {
	companyService services.CompanyService
}

func NewCompanyHandler(companyService services.CompanyService) *CompanyHandler {
	return &CompanyHandler{companyService: companyService}
}

func (ch *CompanyHandler) Lookup(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("not authenticated"))
		return
	}
	company, err := ch.companyService.LookupCNPJ(c.Request.Context(), c.Param("cnpj"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"company": company})
}
