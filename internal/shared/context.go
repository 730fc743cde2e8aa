package shared

import (
	"context"

	"github.com/google/uuid"
)

// Actor identifies the operator behind a request. Authentication happens
// upstream; the gateway forwards identity via headers.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
