package comment

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/repository/postgres"
	"github.com/nkiryanov/vidtube/internal/testutil"
)

func Test_CommentService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type env struct {
		s        *CommentService
		video    models.Video
		author   models.User
		stranger models.User
	}

	inTx := func(t *testing.T, fn func(e env)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			author := testutil.CreateUser(t, storage.User(), "author")
			video, err := storage.Video().CreateVideo(t.Context(), repository.CreateVideoParams{
				OwnerID:      author.ID,
				VideoFileURL: "https://media.test/video.mp4",
				ThumbnailURL: "https://media.test/thumb.png",
				Title:        "video",
				Description:  "video",
				Duration:     decimal.NewFromInt(1),
			})
			require.NoError(t, err)

			fn(env{
				s:        NewService(storage),
				video:    video,
				author:   author,
				stranger: testutil.CreateUser(t, storage.User(), "stranger"),
			})
		})
	}

	t.Run("AddComment", func(t *testing.T) {
		t.Run("ok and sanitized", func(t *testing.T) {
			inTx(t, func(e env) {
				c, err := e.s.AddComment(t.Context(), e.video.ID, e.stranger.ID, " <a href=\"x\">nice</a> video ")

				require.NoError(t, err)
				assert.Equal(t, "nice video", c.Content)
				assert.Equal(t, e.stranger.ID, c.OwnerID)
				assert.Equal(t, e.video.ID, c.VideoID)
			})
		})

		t.Run("plain text kept as typed", func(t *testing.T) {
			inTx(t, func(e env) {
				c, err := e.s.AddComment(t.Context(), e.video.ID, e.stranger.ID, "Don't & <3")

				require.NoError(t, err)
				assert.Equal(t, "Don't & <3", c.Content)
			})
		})

		t.Run("empty content", func(t *testing.T) {
			inTx(t, func(e env) {
				for _, content := range []string{"", "   ", "<p></p>"} {
					_, err := e.s.AddComment(t.Context(), e.video.ID, e.stranger.ID, content)
					require.ErrorIs(t, err, apperrors.ErrBadRequest, "content %q", content)
				}
			})
		})

		t.Run("video not found", func(t *testing.T) {
			inTx(t, func(e env) {
				_, err := e.s.AddComment(t.Context(), uuid.New(), e.stranger.ID, "hello")
				require.ErrorIs(t, err, apperrors.ErrVideoNotFound)
			})
		})
	})

	t.Run("ListComments", func(t *testing.T) {
		inTx(t, func(e env) {
			for _, content := range []string{"one", "two", "three"} {
				_, err := e.s.AddComment(t.Context(), e.video.ID, e.stranger.ID, content)
				require.NoError(t, err)
			}

			page, err := e.s.ListComments(t.Context(), e.video.ID, e.stranger.ID, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(3), page.TotalComments)
			assert.Len(t, page.Comments, 3)
			assert.Equal(t, DefaultPage, page.Page)
			assert.Equal(t, DefaultLimit, page.Limit)

			page, err = e.s.ListComments(t.Context(), e.video.ID, e.stranger.ID, 2, 2)
			require.NoError(t, err)
			assert.Len(t, page.Comments, 1)

			_, err = e.s.ListComments(t.Context(), uuid.New(), e.stranger.ID, 1, 10)
			require.ErrorIs(t, err, apperrors.ErrVideoNotFound)
		})
	})

	t.Run("page out of range", func(t *testing.T) {
		inTx(t, func(e env) {
			_, err := e.s.ListComments(t.Context(), e.video.ID, e.stranger.ID, math.MaxInt/5, 10)

			require.ErrorIs(t, err, apperrors.ErrBadRequest)
		})
	})

	t.Run("unpublished video", func(t *testing.T) {
		inTx(t, func(e env) {
			_, err := e.s.AddComment(t.Context(), e.video.ID, e.stranger.ID, "before")
			require.NoError(t, err)
			_, err = e.s.storage.Video().SetPublished(t.Context(), e.video.ID, false)
			require.NoError(t, err)

			_, err = e.s.ListComments(t.Context(), e.video.ID, e.stranger.ID, 1, 10)
			require.ErrorIs(t, err, apperrors.ErrVideoNotFound, "hidden from strangers")
			_, err = e.s.AddComment(t.Context(), e.video.ID, e.stranger.ID, "after")
			require.ErrorIs(t, err, apperrors.ErrVideoNotFound)

			page, err := e.s.ListComments(t.Context(), e.video.ID, e.author.ID, 1, 10)
			require.NoError(t, err, "owner still sees comments")
			assert.Equal(t, int64(1), page.TotalComments)
			_, err = e.s.AddComment(t.Context(), e.video.ID, e.author.ID, "owner note")
			require.NoError(t, err)
		})
	})

	t.Run("UpdateComment", func(t *testing.T) {
		inTx(t, func(e env) {
			c, err := e.s.AddComment(t.Context(), e.video.ID, e.author.ID, "typo")
			require.NoError(t, err)

			_, err = e.s.UpdateComment(t.Context(), c.ID, e.stranger.ID, "hacked")
			require.ErrorIs(t, err, apperrors.ErrForbidden)
			msg, _ := apperrors.Message(err)
			assert.Equal(t, "You don't have permission to update this comment", msg)

			updated, err := e.s.UpdateComment(t.Context(), c.ID, e.author.ID, "fixed")
			require.NoError(t, err)
			assert.Equal(t, "fixed", updated.Content)

			_, err = e.s.UpdateComment(t.Context(), c.ID, e.author.ID, " ")
			require.ErrorIs(t, err, apperrors.ErrBadRequest)

			_, err = e.s.UpdateComment(t.Context(), uuid.New(), e.author.ID, "x")
			require.ErrorIs(t, err, apperrors.ErrCommentNotFound)
		})
	})

	t.Run("DeleteComment", func(t *testing.T) {
		t.Run("stranger forbidden and comment stays", func(t *testing.T) {
			inTx(t, func(e env) {
				c, err := e.s.AddComment(t.Context(), e.video.ID, e.author.ID, "mine")
				require.NoError(t, err)

				err = e.s.DeleteComment(t.Context(), c.ID, e.stranger.ID)

				require.ErrorIs(t, err, apperrors.ErrForbidden)
				_, err = e.s.storage.Comment().GetComment(t.Context(), c.ID)
				require.NoError(t, err, "comment still exists")
			})
		})

		t.Run("author ok", func(t *testing.T) {
			inTx(t, func(e env) {
				c, err := e.s.AddComment(t.Context(), e.video.ID, e.author.ID, "mine")
				require.NoError(t, err)

				require.NoError(t, e.s.DeleteComment(t.Context(), c.ID, e.author.ID))

				err = e.s.DeleteComment(t.Context(), c.ID, e.author.ID)
				require.ErrorIs(t, err, apperrors.ErrCommentNotFound)
			})
		})
	})
}
