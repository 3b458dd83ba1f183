package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cairnhq/cairn/internal/app"
	"github.com/cairnhq/cairn/internal/permissions"
	"github.com/cairnhq/cairn/internal/platform/db"
	"github.com/cairnhq/cairn/internal/shared"
	"github.com/cairnhq/cairn/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	permissionsRepo := permissions.NewRepository(pool)
	roleCache := permissions.NewRoleCache(redisClient, cfg.RoleCacheTTL, logger)
	permissionsService := permissions.NewService(permissionsRepo, roleCache, auditLogger, logger)

	warmupJob := jobs.NewRoleCacheWarmupJob(permissionsService, pool, logger)
	retentionJob := jobs.NewAuditRetentionJob(pool, logger)

	warmupTask, err := jobs.NewRoleCacheWarmupTask(jobs.RoleCacheWarmupPayload{Limit: 200})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewAuditRetentionTask(jobs.AuditRetentionPayload{Retention: cfg.AuditRetention})
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRoleCacheWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskAuditRetention, Handler: retentionJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
