package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cairnhq/cairn/internal/permissions"
)

// RoleCacheWarmupJob pre-populates the role cache for recently active users
// so their first permission check after a deploy hits warm data.
type RoleCacheWarmupJob struct {
	Permissions *permissions.Service
	Pool        *pgxpool.Pool
	Logger      *slog.Logger
}

// NewRoleCacheWarmupJob wires dependencies for the warmup handler.
func NewRoleCacheWarmupJob(svc *permissions.Service, pool *pgxpool.Pool, logger *slog.Logger) *RoleCacheWarmupJob {
	return &RoleCacheWarmupJob{Permissions: svc, Pool: pool, Logger: logger}
}

// Handle processes role cache warmup tasks.
func (j *RoleCacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Permissions == nil {
		return errors.New("role cache warmup: handler not configured")
	}
	var payload RoleCacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 200
	}

	started := time.Now()
	ids, err := j.fetchActiveUsers(ctx, payload.Limit)
	if err != nil {
		j.Logger.Error("load warmup users", slog.Any("error", err))
		return err
	}

	warmed := 0
	for _, id := range ids {
		if _, err := j.Permissions.GetUserRoles(ctx, id); err != nil {
			j.Logger.Warn("warm user roles", slog.String("user_id", id.String()), slog.Any("error", err))
			continue
		}
		warmed++
	}

	j.Logger.Info("role cache warmup complete",
		slog.Int("warmed", warmed),
		slog.Int("candidates", len(ids)),
		slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *RoleCacheWarmupJob) fetchActiveUsers(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT id FROM users WHERE state = 'active' AND is_active ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
