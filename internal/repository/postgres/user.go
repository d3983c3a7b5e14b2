package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `
	id, created_at, updated_at, username, email, full_name, avatar_url, cover_image_url,
	password_hash, refresh_token, refresh_token_version
`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, p repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		uuid.New(), p.Username, p.Email, p.FullName, p.AvatarURL, p.CoverImageURL, p.HashedPassword,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case isUniqueViolation(err):
		return user, apperrors.ErrUserAlreadyExists
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByLogin = `-- name: GetUserByLogin
SELECT ` + userColumns + `
FROM users
WHERE username = $1 OR email = $2
LIMIT 1
`

func (r *UserRepo) GetUserByLogin(ctx context.Context, username string, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByLogin, username, email)
	return collectUser(rows)
}

const setRefreshToken = `-- name: SetRefreshToken
UPDATE users
SET refresh_token = $2, refresh_token_version = refresh_token_version + 1
WHERE id = $1
RETURNING refresh_token_version
`

func (r *UserRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) (int64, error) {
	var version int64
	err := r.DB.QueryRow(ctx, setRefreshToken, userID, token).Scan(&version)

	switch {
	case err == nil:
		return version, nil
	case errors.Is(err, pgx.ErrNoRows):
		return version, apperrors.ErrUserNotFound
	default:
		return version, fmt.Errorf("db error: %w", err)
	}
}

// Compare-and-swap on the version: concurrent rotations of the same token have one winner
const rotateRefreshToken = `-- name: RotateRefreshToken
UPDATE users
SET refresh_token = $3, refresh_token_version = refresh_token_version + 1
WHERE id = $1 AND refresh_token_version = $2
RETURNING refresh_token_version
`

func (r *UserRepo) RotateRefreshToken(ctx context.Context, userID uuid.UUID, expectedVersion int64, token string) (int64, error) {
	var version int64
	err := r.DB.QueryRow(ctx, rotateRefreshToken, userID, expectedVersion, token).Scan(&version)

	switch {
	case err == nil:
		return version, nil
	case errors.Is(err, pgx.ErrNoRows):
		return version, apperrors.ErrRefreshTokenIsUsed
	default:
		return version, fmt.Errorf("db error: %w", err)
	}
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET password_hash = $2, updated_at = NOW()
WHERE id = $1
`

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePassword, userID, hashedPassword)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

const updateAccount = `-- name: UpdateAccount
UPDATE users
SET full_name = $2, email = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateAccount, userID, fullName, email)
	user, err := collectUser(rows)
	if isUniqueViolation(err) {
		return user, apperrors.ErrUserAlreadyExists
	}
	return user, err
}

const updateAvatar = `-- name: UpdateAvatar
UPDATE users
SET avatar_url = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateAvatar(ctx context.Context, userID uuid.UUID, url string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateAvatar, userID, url)
	return collectUser(rows)
}

const updateCoverImage = `-- name: UpdateCoverImage
UPDATE users
SET cover_image_url = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateCoverImage(ctx context.Context, userID uuid.UUID, url string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateCoverImage, userID, url)
	return collectUser(rows)
}

const addToWatchHistory = `-- name: AddToWatchHistory
INSERT INTO watch_history (user_id, video_id)
VALUES ($1, $2)
`

func (r *UserRepo) AddToWatchHistory(ctx context.Context, userID uuid.UUID, videoID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, addToWatchHistory, userID, videoID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listWatchHistory = `-- name: ListWatchHistory
SELECT ` + videoColumns + `
FROM watch_history h
JOIN videos v ON v.id = h.video_id
JOIN users u ON u.id = v.owner_id
WHERE h.user_id = $1
ORDER BY h.id DESC
`

func (r *UserRepo) ListWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error) {
	rows, _ := r.DB.Query(ctx, listWatchHistory, userID)
	videos, err := pgx.CollectRows(rows, rowToVideo)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return videos, nil
}

const getChannelProfile = `-- name: GetChannelProfile
SELECT ` + userColumns + `,
	(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = users.id),
	(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = users.id),
	EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = users.id AND s.subscriber_id = $2)
FROM users
WHERE username = $1
`

func (r *UserRepo) GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error) {
	rows, _ := r.DB.Query(ctx, getChannelProfile, username, viewerID)
	profile, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.ChannelProfile, error) {
		var (
			u models.User
			p models.ChannelProfile
		)
		err := row.Scan(
			&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
			&u.HashedPassword, &u.RefreshToken, &u.RefreshTokenVersion,
			&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
		)
		p.PublicUser = u.Public()
		return p, err
	})

	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, pgx.ErrNoRows):
		return profile, apperrors.ErrUserNotFound
	default:
		return profile, fmt.Errorf("db error: %w", err)
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	case isUniqueViolation(err):
		return user, err
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
		&u.HashedPassword, &u.RefreshToken, &u.RefreshTokenVersion,
	)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
