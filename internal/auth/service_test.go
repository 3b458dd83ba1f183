package auth

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cairnhq/cairn/internal/shared"
	"github.com/cairnhq/cairn/internal/users"
)

type stubDirectory struct {
	byEmail map[string]users.User
}

func (d *stubDirectory) FindByEmail(ctx context.Context, email string) (users.User, error) {
	u, ok := d.byEmail[email]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (d *stubDirectory) Resolve(ctx context.Context, id uuid.UUID) (users.User, error) {
	for _, u := range d.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func newTestAuth(t *testing.T) (*Service, *stubDirectory) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	dir := &stubDirectory{byEmail: map[string]users.User{
		"dev@cairn.dev": {
			ID:           uuid.New(),
			Email:        "dev@cairn.dev",
			IsActive:     true,
			PasswordHash: string(hash),
		},
	}}
	return NewService(dir, client, time.Minute), dir
}

func TestAuthenticateAndResolve(t *testing.T) {
	svc, dir := newTestAuth(t)
	ctx := context.Background()

	token, user, err := svc.Authenticate(ctx, "dev@cairn.dev", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, dir.byEmail["dev@cairn.dev"].ID, user.ID)

	resolved, err := svc.ResolveToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, user.ID, resolved)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, dir := newTestAuth(t)
	ctx := context.Background()

	_, _, err := svc.Authenticate(ctx, "dev@cairn.dev", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "nobody@cairn.dev", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	inactive := dir.byEmail["dev@cairn.dev"]
	inactive.IsActive = false
	dir.byEmail["dev@cairn.dev"] = inactive
	_, _, err = svc.Authenticate(ctx, "dev@cairn.dev", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRevokeToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	token, _, err := svc.Authenticate(ctx, "dev@cairn.dev", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(ctx, token))

	_, err = svc.ResolveToken(ctx, token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
