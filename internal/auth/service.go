package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/cairnhq/cairn/internal/shared"
	"github.com/cairnhq/cairn/internal/users"
)

// UserDirectory resolves accounts for credential checks.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Resolve(ctx context.Context, id uuid.UUID) (users.User, error)
}

// Service wraps authentication business rules: bcrypt credential checks and
// opaque bearer tokens stored in redis with a TTL.
type Service struct {
	directory UserDirectory
	sessions  *redis.Client
	ttl       time.Duration
}

// NewService constructs a new Service.
func NewService(directory UserDirectory, sessions *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{directory: directory, sessions: sessions, ttl: ttl}
}

func sessionKey(token string) string {
	return "auth:session:" + token
}

// Authenticate validates email/password credentials and issues a bearer token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, users.User, error) {
	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return "", users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", users.User{}, shared.ErrInvalidCredentials
	}
	token := uuid.NewString()
	if err := s.sessions.Set(ctx, sessionKey(token), user.ID.String(), s.ttl).Err(); err != nil {
		return "", users.User{}, fmt.Errorf("auth: store session: %w", err)
	}
	return token, user, nil
}

// ResolveToken maps a bearer token back to its user ID.
func (s *Service) ResolveToken(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	raw, err := s.sessions.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth: load session: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	return id, nil
}

// RevokeToken deletes a session.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, sessionKey(token)).Err()
}
