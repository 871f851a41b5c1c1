// Package identity carries the acting user through context. Session
// resolution (tokens, cookies) happens outside this core; collaborators set
// the actor before calling in.
package identity

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor is the identity performing an operation. IsAdministrator marks site
// administrators, who bypass membership checks.
type Actor struct {
	UserID          uuid.UUID
	IsAdministrator bool
	IsBot           bool
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// UserID returns the acting user id, or uuid.Nil when no actor is set.
func UserID(ctx context.Context) uuid.UUID {
	if actor, ok := ActorFrom(ctx); ok {
		return actor.UserID
	}
	return uuid.Nil
}

func IsAdministrator(ctx context.Context) bool {
	if actor, ok := ActorFrom(ctx); ok {
		return actor.IsAdministrator
	}
	return false
}
