// Package routes wires the HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerline/ledger-service/internal/api/handlers"
	"github.com/ledgerline/ledger-service/internal/api/middleware"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
	"github.com/ledgerline/ledger-service/internal/domain/services/account"
	"github.com/ledgerline/ledger-service/internal/domain/services/audit"
	"github.com/ledgerline/ledger-service/internal/domain/services/auth"
	"github.com/ledgerline/ledger-service/internal/domain/services/transfer"
	"github.com/ledgerline/ledger-service/internal/infrastructure/config"
	"github.com/ledgerline/ledger-service/internal/infrastructure/database"
	pkgauth "github.com/ledgerline/ledger-service/pkg/auth"
	"github.com/ledgerline/ledger-service/pkg/logger"
)

// Deps carries everything the router needs.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.DB
	Redis        *redis.Client
	Blacklist    *pkgauth.TokenBlacklist
	Transfers    *transfer.Service
	Accounts     *account.Service
	Auth         *auth.Service
	Audit        *audit.Service
	Transactions repositories.TransactionRepository
	Ledger       repositories.LedgerRepository
}

// Setup configures all application routes.
func Setup(deps Deps) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(deps.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	healthHandlers := handlers.NewHealthHandlers(deps.DB, deps.Redis)
	authHandlers := handlers.NewAuthHandlers(deps.Auth)
	accountHandlers := handlers.NewAccountHandlers(deps.Accounts, deps.Ledger)
	transferHandlers := handlers.NewTransferHandlers(deps.Transfers)
	transactionHandlers := handlers.NewTransactionHandlers(deps.Transactions, deps.Ledger)
	auditHandlers := handlers.NewAuditHandlers(deps.Audit)

	router.GET("/health", healthHandlers.Liveness)
	router.GET("/health/ready", healthHandlers.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authHandlers.Register)
		authGroup.POST("/login", authHandlers.Login)
		authGroup.POST("/refresh", authHandlers.Refresh)
	}

	authed := v1.Group("")
	authed.Use(middleware.Authentication(deps.Config.JWT.Secret, deps.Blacklist))
	{
		authed.POST("/auth/logout", authHandlers.Logout)

		authed.POST("/accounts", accountHandlers.Create)
		authed.GET("/accounts", accountHandlers.List)
		authed.GET("/accounts/:id", accountHandlers.Get)
		authed.POST("/accounts/:id/freeze", accountHandlers.Freeze)
		authed.POST("/accounts/:id/unfreeze", accountHandlers.Unfreeze)
		authed.POST("/accounts/:id/terminate", accountHandlers.Terminate)
		authed.POST("/accounts/:id/deposits", accountHandlers.Deposit)
		authed.GET("/accounts/:id/ledger", accountHandlers.Ledger)
		authed.GET("/accounts/:id/reconciliation", accountHandlers.Reconcile)

		authed.POST("/transfers", transferHandlers.Create)
		authed.GET("/transactions", transactionHandlers.List)
		authed.GET("/transactions/:id", transactionHandlers.Get)

		authed.GET("/audit-logs", auditHandlers.List)
	}

	return router
}
