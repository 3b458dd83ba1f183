package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRetentionJob deletes audit_logs rows older than the retention window.
type AuditRetentionJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{Pool: pool, Logger: logger}
}

// Handle processes audit retention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = 90 * 24 * time.Hour
	}

	cutoff := time.Now().UTC().Add(-payload.Retention)
	tag, err := j.Pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		j.Logger.Error("audit retention sweep", slog.Any("error", err))
		return err
	}

	j.Logger.Info("audit retention sweep complete",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return nil
}
