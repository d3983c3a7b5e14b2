// Package userctx carries the authenticated user through request context
package userctx

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/models"
)

type ctxKey struct{}

// Create a new context with the user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Extract the user from the context
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// ID of the authenticated user or uuid.Nil
func UserID(ctx context.Context) uuid.UUID {
	u, _ := FromContext(ctx)
	return u.ID
}
