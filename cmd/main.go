package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/ledger-service/internal/api/routes"
	"github.com/ledgerline/ledger-service/internal/domain/services/account"
	"github.com/ledgerline/ledger-service/internal/domain/services/audit"
	"github.com/ledgerline/ledger-service/internal/domain/services/auth"
	"github.com/ledgerline/ledger-service/internal/domain/services/transfer"
	"github.com/ledgerline/ledger-service/internal/infrastructure/cache"
	"github.com/ledgerline/ledger-service/internal/infrastructure/config"
	"github.com/ledgerline/ledger-service/internal/infrastructure/database"
	"github.com/ledgerline/ledger-service/internal/infrastructure/repositories"
	"github.com/ledgerline/ledger-service/internal/workers/pending_reconciler"
	pkgauth "github.com/ledgerline/ledger-service/pkg/auth"
	"github.com/ledgerline/ledger-service/pkg/logger"
	"github.com/ledgerline/ledger-service/pkg/metrics"
	"github.com/ledgerline/ledger-service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	db, err := database.NewConnection(cfg.Database, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection", "error", err)
		}
	}()

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	// Repositories
	transferStore := repositories.NewTransferStore(db.DB)
	userRepo := repositories.NewUserRepository(db.DB)
	accountRepo := repositories.NewAccountRepository(db.DB)
	transactionRepo := repositories.NewTransactionRepository(db.DB)
	ledgerRepo := repositories.NewLedgerRepository(db.DB)
	auditRepo := repositories.NewAuditRepository(db.DB)

	// Services
	blacklist := pkgauth.NewTokenBlacklist(redisClient)
	auditService := audit.NewService(auditRepo, log.Zap())
	transferService := transfer.NewService(transferStore, log.Zap())
	accountService := account.NewService(accountRepo, ledgerRepo, auditService, log.Zap())
	authService := auth.NewService(userRepo, blacklist, auditService, cfg.JWT, cfg.Security, log.Zap())

	// Pending reconciler
	var reconciler *pending_reconciler.Worker
	if cfg.Reconciler.Enabled {
		reconciler = pending_reconciler.NewWorker(transferStore, cfg.Reconciler, log.Zap())
		if err := reconciler.Start(); err != nil {
			log.Fatal("Failed to start pending reconciler", "error", err)
		}
	}

	// Connection pool gauge
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-poolCtx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
				metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
				metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
			}
		}
	}()

	router := routes.Setup(routes.Deps{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		Redis:        redisClient,
		Blacklist:    blacklist,
		Transfers:    transferService,
		Accounts:     accountService,
		Auth:         authService,
		Audit:        auditService,
		Transactions: transactionRepo,
		Ledger:       ledgerRepo,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	if reconciler != nil {
		reconciler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", "error", err)
	}
	log.Info("Server stopped")
}
