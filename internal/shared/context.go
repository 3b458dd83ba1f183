package shared

import (
	"context"

	"github.com/google/uuid"
)

type actorContextKey struct{}

// ContextWithActor stores the authenticated user ID in context.
func ContextWithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the authenticated user ID from context.
// The second return value reports whether an actor is present.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorContextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
