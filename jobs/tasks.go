package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleCacheWarmup pre-populates the per-user role cache.
	TaskRoleCacheWarmup = "permissions:role_cache_warmup"
	// TaskAuditRetention prunes expired audit_logs rows.
	TaskAuditRetention = "audit:retention_sweep"
)

// RoleCacheWarmupPayload selects which accounts to warm.
type RoleCacheWarmupPayload struct {
	// Limit caps how many of the most recently active users are warmed.
	Limit int `json:"limit"`
}

// NewRoleCacheWarmupTask constructs an Asynq task.
func NewRoleCacheWarmupTask(payload RoleCacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleCacheWarmup, data), nil
}

// AuditRetentionPayload controls how far back audit records are kept.
type AuditRetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
