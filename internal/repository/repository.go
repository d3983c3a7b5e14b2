package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/vidtube/internal/models"
)

type Storage interface {
	User() UserRepo
	Video() VideoRepo
	Comment() CommentRepo
	Subscription() SubscriptionRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Username       string
	Email          string
	FullName       string
	AvatarURL      string
	CoverImageURL  string
	HashedPassword string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the username or email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id, or by username or email (any that matches)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByLogin(ctx context.Context, username string, email string) (models.User, error)

	// Overwrite stored refresh token, nil clears it. Returns new token version
	// If user not found must return apperrors.ErrUserNotFound
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) (version int64, err error)

	// Replace refresh token only if stored version equals expectedVersion
	// If version moved must return apperrors.ErrRefreshTokenIsUsed
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, expectedVersion int64, token string) (version int64, err error)

	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// Has to return apperrors.ErrUserAlreadyExists if email is taken by someone else
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, url string) (models.User, error)

	AddToWatchHistory(ctx context.Context, userID uuid.UUID, videoID uuid.UUID) error

	// Videos the user watched, the most recent first
	ListWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error)

	// If channel not found must return apperrors.ErrUserNotFound
	GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error)
}

type CreateVideoParams struct {
	OwnerID      uuid.UUID
	VideoFileURL string
	ThumbnailURL string
	Title        string
	Description  string
	Duration     decimal.Decimal
}

type ListVideosParams struct {
	// Case insensitive substring of the title, empty to match any
	Query string

	// Restrict to the owner; uuid.Nil means any owner
	OwnerID uuid.UUID

	// Return unpublished videos too
	IncludeUnpublished bool

	SortBy   string
	SortDesc bool

	Limit  int
	Offset int
}

// Video repository interface
// Methods returning a single video must return apperrors.ErrVideoNotFound if it does not exist
type VideoRepo interface {
	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, videoID uuid.UUID) (models.Video, error)
	ListVideos(ctx context.Context, params ListVideosParams) (videos []models.Video, total int64, err error)
	UpdateVideo(ctx context.Context, videoID uuid.UUID, title string, description string, thumbnailURL string) (models.Video, error)
	DeleteVideo(ctx context.Context, videoID uuid.UUID) error
	SetPublished(ctx context.Context, videoID uuid.UUID, published bool) (models.Video, error)
	IncrementViews(ctx context.Context, videoID uuid.UUID) error
}

// Comment repository interface
// Methods returning a single comment must return apperrors.ErrCommentNotFound if it does not exist
type CommentRepo interface {
	CreateComment(ctx context.Context, videoID uuid.UUID, ownerID uuid.UUID, content string) (models.Comment, error)
	GetComment(ctx context.Context, commentID uuid.UUID) (models.Comment, error)

	// Newest first
	ListComments(ctx context.Context, videoID uuid.UUID, limit int, offset int) (comments []models.Comment, total int64, err error)
	UpdateComment(ctx context.Context, commentID uuid.UUID, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, commentID uuid.UUID) error
}

type SubscriptionRepo interface {
	// Return true if subscription created, false if it existed already
	Subscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (bool, error)

	// Return true if subscription removed, false if it did not exist
	Unsubscribe(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (bool, error)
}
