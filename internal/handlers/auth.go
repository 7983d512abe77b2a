package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apoliceplus/backend/internal/platform/apierr"
	"github.com/apoliceplus/backend/internal/services"
	"github.com/apoliceplus/backend/internal/types"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email         string `json:"email"`
		FirstName     string `json:"first_name"`
		LastName      string `json:"last_name"`
		Password      string `json:"password"`
		CNPJ          string `json:"cnpj"`
		BrokerageName string `json:"brokerage_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	user := types.User{
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Password:      req.Password,
		CNPJ:          req.CNPJ,
		BrokerageName: req.BrokerageName,
	}
	if err := ah.authService.RegisterUser(c.Request.Context(), &user); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"id": user.ID, "email": user.Email})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	accessToken, refreshToken, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	expiresIn := int(ah.authService.GetAccessTTL().Seconds())
	RespondOK(c, gin.H{"access_token": accessToken, "refresh_token": refreshToken, "expires_in": expiresIn})
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
	accessToken, refreshToken, err := ah.authService.RefreshUser(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	expiresIn := int(ah.authService.GetAccessTTL().Seconds())
	RespondOK(c, gin.H{"access_token": accessToken, "refresh_token": refreshToken, "expires_in": expiresIn})
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.LogoutUser(c.Request.Context()); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "logged out successfully"})
}

func (ah *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	if err := ah.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		RespondAppError(c, err)
		return
	}
	// Same response whether or not the email exists.
	RespondOK(c, gin.H{"message": "if the email is registered, a reset link was sent"})
}

func (ah *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("invalid request body"))
		return
	}
	if err := ah.authService.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "password updated"})
}
