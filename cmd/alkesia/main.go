package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkesia/alkesia/internal/app"
	"github.com/alkesia/alkesia/internal/audit"
	"github.com/alkesia/alkesia/internal/auth"
	"github.com/alkesia/alkesia/internal/equipment"
	"github.com/alkesia/alkesia/internal/functions"
	"github.com/alkesia/alkesia/internal/observability"
	"github.com/alkesia/alkesia/internal/platform/cache"
	"github.com/alkesia/alkesia/internal/platform/db"
	"github.com/alkesia/alkesia/internal/profiles"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
	"github.com/alkesia/alkesia/internal/tenants"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	profilesRepo := profiles.NewRepository(dbpool)
	profilesService := profiles.NewService(logger, profilesRepo, nil, auditLogger)

	guard := rbac.NewGuard(logger, profilesService, redisClient).WithDenialRecorder(metrics)
	profilesService.BindInvalidator(guard)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, profilesService, sessionManager, csrfManager)

	usersHandler := profiles.NewHandler(logger, profilesService, guard)

	tenantsRepo := tenants.NewRepository(dbpool)
	tenantsService := tenants.NewService(logger, tenantsRepo, auditLogger, guard)
	tenantsHandler := tenants.NewHandler(logger, tenantsService, guard)

	equipmentRepo := equipment.NewRepository(dbpool)
	equipmentService := equipment.NewService(logger, equipmentRepo, auditLogger)
	equipmentHandler := equipment.NewHandler(logger, equipmentService, guard)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audit.NewHandler(logger, auditService, guard)

	functionsService := functions.NewService(logger, authService, profilesService, auditLogger, cfg.BootstrapAdminEmail)
	functionsHandler := functions.NewHandler(logger, functionsService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Guard:            guard,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		TenantsHandler:   tenantsHandler,
		EquipmentHandler: equipmentHandler,
		AuditHandler:     auditHandler,
		FunctionsHandler: functionsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
