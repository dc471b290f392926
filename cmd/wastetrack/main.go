package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cleancity/wastetrack/internal/api"
	"github.com/cleancity/wastetrack/internal/app"
	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/bins"
	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/observability"
	"github.com/cleancity/wastetrack/internal/platform/cache"
	"github.com/cleancity/wastetrack/internal/platform/db"
	"github.com/cleancity/wastetrack/internal/portal"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/view"
	"github.com/cleancity/wastetrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, "", 0)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "wastetrack_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool), sessionManager)
	roles := rbac.NewCachedRoles(rbac.NewStore(dbpool), redisClient, cfg.RoleCacheTTL)
	authHandler := auth.NewHandler(logger, authService, roles, templates, sessionManager, csrfManager)

	driverService := drivers.NewService(drivers.NewRepository(dbpool), authService, auditLogger, logger)
	driverService.Subscribe(roles)
	binService := bins.NewService(bins.NewRepository(dbpool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	complaintService := complaints.NewService(complaints.NewRepository(dbpool), driverService, jobClient, auditLogger, logger).
		WithMetrics(metrics)

	gate := rbac.Gate{Roles: roles, Directory: authService, Sessions: sessionManager, Logger: logger, Metrics: metrics}
	tokens := auth.NewTokenIssuer(cfg.APITokenSecret, cfg.APITokenTTL)
	apiHandler := api.NewHandler(logger, authService, tokens, int(tokens.TTL().Seconds()), roles, driverService)
	portalHandler := portal.NewHandler(portal.Params{
		Logger:     logger,
		Templates:  templates,
		CSRF:       csrfManager,
		Latch:      shared.NewBusyLatch(redisClient, cfg.BusyLatchTTL),
		Complaints: complaintService,
		Drivers:    driverService,
		Bins:       binService,
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Gate:           gate,
		AuthHandler:    authHandler,
		PortalHandler:  portalHandler,
		APIHandler:     apiHandler,
		JobHandler:     jobHandler,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		Metrics: metrics,
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
