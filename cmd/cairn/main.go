package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cairnhq/cairn/internal/app"
	"github.com/cairnhq/cairn/internal/auth"
	"github.com/cairnhq/cairn/internal/dependency"
	"github.com/cairnhq/cairn/internal/permissions"
	"github.com/cairnhq/cairn/internal/platform/cache"
	"github.com/cairnhq/cairn/internal/platform/db"
	"github.com/cairnhq/cairn/internal/shared"
	"github.com/cairnhq/cairn/internal/tasks"
	"github.com/cairnhq/cairn/internal/users"
	"github.com/cairnhq/cairn/internal/workflow"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	locker := shared.NewLocker(redisClient)

	usersRepo := users.NewRepository(pool)
	authService := auth.NewService(usersRepo, redisClient, cfg.AuthSessionTTL)
	authHandler := auth.NewHandler(logger, authService)

	permissionsRepo := permissions.NewRepository(pool)
	roleCache := permissions.NewRoleCache(redisClient, cfg.RoleCacheTTL, logger)
	permissionsService := permissions.NewService(permissionsRepo, roleCache, auditLogger, logger)
	permissionsHandler := permissions.NewHandler(logger, permissionsService)

	tasksRepo := tasks.NewRepository(pool)

	workflowRepo := workflow.NewRepository(pool)
	workflowService := workflow.NewService(workflowRepo, permissionsService, tasksRepo, auditLogger, logger)
	workflowHandler := workflow.NewHandler(logger, workflowService)

	dependencyRepo := dependency.NewRepository(pool)
	dependencyService := dependency.NewService(dependencyRepo, tasksRepo, locker, auditLogger, logger)
	dependencyHandler := dependency.NewHandler(logger, dependencyService)

	tasksService := tasks.NewService(tasksRepo, permissionsService, workflowService, auditLogger, logger)
	tasksHandler := tasks.NewHandler(logger, tasksService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		AuthHandler:        authHandler,
		PermissionsHandler: permissionsHandler,
		WorkflowHandler:    workflowHandler,
		DependencyHandler:  dependencyHandler,
		TasksHandler:       tasksHandler,
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
