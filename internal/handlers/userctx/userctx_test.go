package userctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/models"
)

func TestUserCtx(t *testing.T) {
	u := models.User{ID: uuid.New(), Username: "nk"}

	ctx := New(context.Background(), u)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, u, got)
	require.Equal(t, u.ID, UserID(ctx))

	_, ok = FromContext(context.Background())
	require.False(t, ok, "empty context has no user")
	require.Equal(t, uuid.Nil, UserID(context.Background()))
}
