package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	params := repository.CreateUserParams{
		Username:       "testuser",
		Email:          "testuser@example.com",
		FullName:       "Test User",
		AvatarURL:      "https://media.test/avatar.png",
		HashedPassword: "hashedpassword123",
	}

	t.Run("create user ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), params)

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID)
			assert.Equal(t, "testuser", user.Username)
			assert.Equal(t, "testuser@example.com", user.Email)
			assert.Equal(t, "Test User", user.FullName)
			assert.Equal(t, "https://media.test/avatar.png", user.AvatarURL)
			assert.Equal(t, "", user.CoverImageURL)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.Nil(t, user.RefreshToken, "new user has no refresh token")
			assert.Zero(t, user.RefreshTokenVersion)
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create duplicate username fail", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			dup := params
			dup.Email = "other@example.com"
			_, err = r.CreateUser(t.Context(), dup)

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("create duplicate email fail", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			dup := params
			dup.Username = "other"
			_, err = r.CreateUser(t.Context(), dup)

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get user by id", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created := testutil.CreateUser(t, &r, "findbyid")

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)

			_, err = r.GetUserByID(t.Context(), uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by login", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created := testutil.CreateUser(t, &r, "findbylogin")

			byUsername, err := r.GetUserByLogin(t.Context(), "findbylogin", "")
			require.NoError(t, err)
			assert.Equal(t, created.ID, byUsername.ID)

			byEmail, err := r.GetUserByLogin(t.Context(), "", "findbylogin@example.com")
			require.NoError(t, err)
			assert.Equal(t, created.ID, byEmail.ID)

			_, err = r.GetUserByLogin(t.Context(), "nobody", "nobody@example.com")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("set refresh token", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			user := testutil.CreateUser(t, &r, "refresher")
			token := "refresh-token"

			version, err := r.SetRefreshToken(t.Context(), user.ID, &token)
			require.NoError(t, err)
			assert.Equal(t, int64(1), version)

			got, err := r.GetUserByID(t.Context(), user.ID)
			require.NoError(t, err)
			require.NotNil(t, got.RefreshToken)
			assert.Equal(t, token, *got.RefreshToken)

			// Clearing twice is fine
			_, err = r.SetRefreshToken(t.Context(), user.ID, nil)
			require.NoError(t, err)
			version, err = r.SetRefreshToken(t.Context(), user.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(3), version)

			got, err = r.GetUserByID(t.Context(), user.ID)
			require.NoError(t, err)
			assert.Nil(t, got.RefreshToken)

			_, err = r.SetRefreshToken(t.Context(), uuid.New(), nil)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("rotate refresh token", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			user := testutil.CreateUser(t, &r, "rotator")
			first := "first"
			version, err := r.SetRefreshToken(t.Context(), user.ID, &first)
			require.NoError(t, err)

			next, err := r.RotateRefreshToken(t.Context(), user.ID, version, "second")
			require.NoError(t, err)
			assert.Equal(t, version+1, next)

			_, err = r.RotateRefreshToken(t.Context(), user.ID, version, "third")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed, "stale version must not win")

			got, err := r.GetUserByID(t.Context(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, "second", *got.RefreshToken)
		})
	})

	t.Run("rotate refresh token concurrently", func(t *testing.T) {
		// Needs committed rows and real concurrent connections, so no test transaction here
		storage := NewStorage(pg.Pool)
		user := testutil.CreateUser(t, storage.User(), "concurrent")
		t.Cleanup(func() {
			_, _ = pg.Pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", user.ID)
		})

		token := "initial"
		version, err := storage.User().SetRefreshToken(t.Context(), user.ID, &token)
		require.NoError(t, err)

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := storage.User().RotateRefreshToken(t.Context(), user.ID, version, uuid.NewString())
				if err == nil {
					mu.Lock()
					success++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed, "worker %d got unexpected error", i)
			}()
		}
		wg.Wait()

		require.Equal(t, 1, success, "exactly one rotation has to win")
	})

	t.Run("update password and account", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			user := testutil.CreateUser(t, &r, "updater")
			other := testutil.CreateUser(t, &r, "other")

			err := r.UpdatePassword(t.Context(), user.ID, "new-hash")
			require.NoError(t, err)

			updated, err := r.UpdateAccount(t.Context(), user.ID, "New Name", "new@example.com")
			require.NoError(t, err)
			assert.Equal(t, "New Name", updated.FullName)
			assert.Equal(t, "new@example.com", updated.Email)
			assert.Equal(t, "new-hash", updated.HashedPassword)

			err = r.UpdatePassword(t.Context(), uuid.New(), "hash")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

			// Last statement: the violation aborts the transaction
			_, err = r.UpdateAccount(t.Context(), user.ID, "New Name", other.Email)
			assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists, "email of other user is taken")
		})
	})

	t.Run("update images", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			user := testutil.CreateUser(t, &r, "images")

			updated, err := r.UpdateAvatar(t.Context(), user.ID, "https://media.test/new-avatar.png")
			require.NoError(t, err)
			assert.Equal(t, "https://media.test/new-avatar.png", updated.AvatarURL)

			updated, err = r.UpdateCoverImage(t.Context(), user.ID, "https://media.test/cover.png")
			require.NoError(t, err)
			assert.Equal(t, "https://media.test/cover.png", updated.CoverImageURL)

			_, err = r.UpdateAvatar(t.Context(), uuid.New(), "https://media.test/x.png")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("watch history", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			s := NewStorage(tx)
			viewer := testutil.CreateUser(t, s.User(), "viewer")
			owner := testutil.CreateUser(t, s.User(), "owner")
			first := createTestVideo(t, s, owner.ID, "first")
			second := createTestVideo(t, s, owner.ID, "second")

			require.NoError(t, s.User().AddToWatchHistory(t.Context(), viewer.ID, first.ID))
			require.NoError(t, s.User().AddToWatchHistory(t.Context(), viewer.ID, second.ID))

			history, err := s.User().ListWatchHistory(t.Context(), viewer.ID)

			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, second.ID, history[0].ID, "the latest watched goes first")
			assert.Equal(t, first.ID, history[1].ID)
			assert.Equal(t, "owner", history[0].Owner.Username)
		})
	})

	t.Run("channel profile", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			s := NewStorage(tx)
			channel := testutil.CreateUser(t, s.User(), "channel")
			fan := testutil.CreateUser(t, s.User(), "fan")
			stranger := testutil.CreateUser(t, s.User(), "stranger")

			created, err := s.Subscription().Subscribe(t.Context(), fan.ID, channel.ID)
			require.NoError(t, err)
			require.True(t, created)
			_, err = s.Subscription().Subscribe(t.Context(), channel.ID, stranger.ID)
			require.NoError(t, err)

			profile, err := s.User().GetChannelProfile(t.Context(), "channel", fan.ID)
			require.NoError(t, err)
			assert.Equal(t, channel.ID, profile.ID)
			assert.Equal(t, int64(1), profile.SubscribersCount)
			assert.Equal(t, int64(1), profile.ChannelsSubscribedToCount)
			assert.True(t, profile.IsSubscribed)

			profile, err = s.User().GetChannelProfile(t.Context(), "channel", stranger.ID)
			require.NoError(t, err)
			assert.False(t, profile.IsSubscribed)

			_, err = s.User().GetChannelProfile(t.Context(), "nobody", fan.ID)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
