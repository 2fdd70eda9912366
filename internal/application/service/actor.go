package service

import (
	"context"
	"strings"
)

// ActorResolver finds the authenticated actor for a request, or nil for system
type ActorResolver func(ctx context.Context) *string

type actorKey struct{}

// WithActor stores the authenticated actor in ctx
func WithActor(ctx context.Context, actorID string) context.Context {
	if strings.TrimSpace(actorID) == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext is the default ActorResolver
func ActorFromContext(ctx context.Context) *string {
	if id, ok := ctx.Value(actorKey{}).(string); ok {
		return &id
	}
	return nil
}
