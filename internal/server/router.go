package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/apoliceplus/backend/internal/handlers"
	"github.com/apoliceplus/backend/internal/middleware"
	"github.com/apoliceplus/backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	UserHandler       *handlers.UserHandler
	GoalHandler       *handlers.GoalHandler
	PolicyHandler     *handlers.PolicyHandler
	PrizeHandler      *handlers.PrizeHandler
	RedemptionHandler *handlers.RedemptionHandler
	CompanyHandler    *handlers.CompanyHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowedOrigins := strings.Split(envutil.String("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/password-reset/request", cfg.AuthHandler.RequestPasswordReset)
	router.POST("/password-reset/confirm", cfg.AuthHandler.ConfirmPasswordReset)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetUser)
	protected.PUT("/user/brokerage", cfg.UserHandler.UpdateBrokerage)
	// Goals
	protected.GET("/goals", cfg.GoalHandler.ListGoals)
	protected.POST("/goals", cfg.GoalHandler.CreateGoal)
	protected.GET("/goals/:id", cfg.GoalHandler.GetGoal)
	protected.POST("/goals/:id/accept", cfg.GoalHandler.AcceptGoal)
	protected.POST("/goals/:id/reject", cfg.GoalHandler.RejectGoal)
	protected.POST("/goals/:id/deactivate", cfg.GoalHandler.DeactivateGoal)
	protected.GET("/goals/:id/progress", cfg.GoalHandler.GetProgress)
	protected.POST("/goals/:id/recompute", cfg.GoalHandler.RecomputeGoal)
	protected.GET("/goals/:id/links", cfg.GoalHandler.ListGoalLinks)
	// Policies
	protected.GET("/policies", cfg.PolicyHandler.ListPolicies)
	protected.POST("/policies", cfg.PolicyHandler.RegisterPolicy)
	protected.GET("/policies/:id", cfg.PolicyHandler.GetPolicy)
	protected.POST("/policies/:id/cancel", cfg.PolicyHandler.CancelPolicy)
	protected.GET("/policies/:id/links", cfg.PolicyHandler.ListPolicyLinks)
	// Prizes
	protected.GET("/prizes", cfg.PrizeHandler.ListPrizes)
	protected.GET("/prizes/balance", cfg.PrizeHandler.GetBalance)
	// Redemption orders
	protected.GET("/redemptions", cfg.RedemptionHandler.ListOrders)
	protected.POST("/redemptions", cfg.RedemptionHandler.CreateOrder)
	protected.GET("/redemptions/:id", cfg.RedemptionHandler.GetOrder)
	protected.POST("/redemptions/:id/cancel", cfg.RedemptionHandler.CancelOrder)
	protected.POST("/redemptions/:id/approve", cfg.RedemptionHandler.ApproveOrder)
	protected.POST("/redemptions/:id/reject", cfg.RedemptionHandler.RejectOrder)
	protected.POST("/redemptions/:id/deliver", cfg.RedemptionHandler.DeliverOrder)
	// Company lookup
	protected.GET("/company/:cnpj", cfg.CompanyHandler.Lookup)

	return router
}
