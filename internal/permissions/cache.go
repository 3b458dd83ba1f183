package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRoleCacheTTL bounds how long a resolved role set may be served
// without recomputation.
const DefaultRoleCacheTTL = 300 * time.Second

// RoleCache stores resolved role sets per user in redis. The cache is
// strictly best-effort: every failure degrades to a miss, never to an error
// visible to the caller.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRoleCache constructs the cache helper. A nil client yields a cache that
// always misses.
func NewRoleCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RoleCache {
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	return &RoleCache{client: client, ttl: ttl, logger: logger}
}

func roleCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("permissions:user_roles:%s", userID)
}

// Get returns the cached projection for the user and whether it was present.
func (c *RoleCache) Get(ctx context.Context, userID uuid.UUID) ([]UserRole, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, roleCacheKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.degraded("get", err)
		return nil, false
	}
	var roles []UserRole
	if err := json.Unmarshal(payload, &roles); err != nil {
		c.degraded("decode", err)
		return nil, false
	}
	return roles, true
}

// Set writes the projection with the configured TTL.
func (c *RoleCache) Set(ctx context.Context, userID uuid.UUID, roles []UserRole) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(roles)
	if err != nil {
		c.degraded("encode", err)
		return
	}
	if err := c.client.Set(ctx, roleCacheKey(userID), payload, c.ttl).Err(); err != nil {
		c.degraded("set", err)
	}
}

// Invalidate evicts the user's entry. Called before returning from any
// assignment mutation so the next read recomputes.
func (c *RoleCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, roleCacheKey(userID)).Err(); err != nil {
		c.degraded("del", err)
	}
}

func (c *RoleCache) degraded(op string, err error) {
	if c.logger != nil {
		c.logger.Warn("role cache degraded", slog.String("op", op), slog.Any("error", err))
	}
}
