package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apoliceplus/backend/internal/clients/cnpjws"
	"github.com/apoliceplus/backend/internal/clients/openai"
	redisclient "github.com/apoliceplus/backend/internal/clients/redis"
	"github.com/apoliceplus/backend/internal/clients/sendgrid"
	"github.com/apoliceplus/backend/internal/db"
	"github.com/apoliceplus/backend/internal/handlers"
	"github.com/apoliceplus/backend/internal/middleware"
	"github.com/apoliceplus/backend/internal/platform/envutil"
	"github.com/apoliceplus/backend/internal/platform/logger"
	"github.com/apoliceplus/backend/internal/repos"
	"github.com/apoliceplus/backend/internal/server"
	"github.com/apoliceplus/backend/internal/services"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := envutil.String("JWT_SECRET_KEY", "defaultsecret")
	accessTokenTTL := envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour)
	refreshTokenTTL := envutil.Seconds("REFRESH_TOKEN_TTL", 24*time.Hour)
	resetTokenTTL := envutil.Seconds("PASSWORD_RESET_TTL", 30*time.Minute)
	resetBaseURL := envutil.String("PASSWORD_RESET_BASE_URL", "http://localhost:3000")

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	passwordResetRepo := repos.NewPasswordResetRepo(thePG, log)
	goalRepo := repos.NewGoalRepo(thePG, log)
	policyRepo := repos.NewPolicyRepo(thePG, log)
	linkRepo := repos.NewPolicyGoalLinkRepo(thePG, log)
	prizeRepo := repos.NewConqueredPrizeRepo(thePG, log)
	orderRepo := repos.NewRedemptionOrderRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	mailer, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("SendGrid not configured, password reset emails disabled", "error", err)
		mailer = nil
	}
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Warn("OpenAI not configured, link justifications disabled", "error", err)
		aiClient = nil
	}
	progressCache, err := redisclient.NewProgressCache(log)
	if err != nil {
		log.Warn("Redis not configured, progress served uncached", "error", err)
		progressCache = nil
	}
	cnpjClient, err := cnpjws.NewClient(log)
	if err != nil {
		log.Error("Could not init CNPJ client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, passwordResetRepo, mailer, jwtSecretKey, accessTokenTTL, refreshTokenTTL, resetTokenTTL, resetBaseURL)
	userService := services.NewUserService(thePG, log, userRepo)
	progressService := services.NewProgressService(thePG, log, goalRepo, linkRepo, policyRepo, prizeRepo, progressCache)
	matchService := services.NewPolicyMatchService(thePG, log, goalRepo, linkRepo, progressService, aiClient)
	goalService := services.NewGoalService(thePG, log, goalRepo, linkRepo)
	policyService := services.NewPolicyService(thePG, log, policyRepo, linkRepo, matchService, progressService)
	prizeService := services.NewPrizeService(thePG, log, prizeRepo, orderRepo)
	redemptionService := services.NewRedemptionService(thePG, log, prizeRepo, orderRepo)
	companyService := services.NewCompanyService(log, cnpjClient)
	reauditService := services.NewReauditService(thePG, log, goalRepo, progressService)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	reauditService.StartWorker(workerCtx)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	goalHandler := handlers.NewGoalHandler(goalService, progressService)
	policyHandler := handlers.NewPolicyHandler(policyService)
	prizeHandler := handlers.NewPrizeHandler(prizeService)
	redemptionHandler := handlers.NewRedemptionHandler(redemptionService)
	companyHandler := handlers.NewCompanyHandler(companyService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		UserHandler:       userHandler,
		GoalHandler:       goalHandler,
		PolicyHandler:     policyHandler,
		PrizeHandler:      prizeHandler,
		RedemptionHandler: redemptionHandler,
		CompanyHandler:    companyHandler,
	})

	port := envutil.String("PORT", "8080")
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
