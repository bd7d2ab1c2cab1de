package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

type actorKey struct{}

// Actor is the authenticated caller as the services see it.
type Actor struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	SessionID string
}

func (a Actor) valid() bool {
	return a.UserID != uuid.Nil && a.Role.IsValid()
}

// WithActor stores the caller on the context. Auth calls it after verifying
// the token; handler tests call it directly.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller seeded by Auth. ok is false when the
// request carries no usable identity.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || !actor.valid() {
		return Actor{}, false
	}
	return actor, true
}

// UserIDFromContext is empty for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.UserID.String()
	}
	return ""
}
