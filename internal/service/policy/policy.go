// Package policy decides whether a caller may mutate a resource
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
)

// Resource that belongs to a single user
type Owned interface {
	OwnerUserID() uuid.UUID
}

// Load the resource and check the caller owns it
//
// Errors from load are returned as is, so a missing resource stays NotFound.
// If the caller is not the owner apperrors.ErrForbidden is returned and the resource is not exposed
func Authorize[T Owned](ctx context.Context, callerID uuid.UUID, load func(context.Context) (T, error)) (T, error) {
	var zero T

	resource, err := load(ctx)
	if err != nil {
		return zero, err
	}

	if callerID == uuid.Nil || resource.OwnerUserID() != callerID {
		return zero, fmt.Errorf("%w: caller %s is not the owner", apperrors.ErrForbidden, callerID)
	}

	return resource, nil
}
