package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/media"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/service/auth/hasher"
)

type UserService struct {
	hasher  hasher.PasswordHasher
	storage repository.Storage
	media   media.Uploader

	// Replaced images are kept on the provider if nil
	orphans orphanCollector
}

type orphanCollector interface {
	Forget(assetURL string)
}

type Option func(*UserService)

// Hand replaced avatars and cover images over to background collector
func WithOrphanCollector(c orphanCollector) Option {
	return func(s *UserService) {
		s.orphans = c
	}
}

func NewService(h hasher.PasswordHasher, storage repository.Storage, uploader media.Uploader, opts ...Option) *UserService {
	if h == nil {
		h = hasher.Default
	}

	s := &UserService{
		hasher:  h,
		storage: storage,
		media:   uploader,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateUserParams struct {
	Username string
	Email    string
	FullName string
	Password string

	// Required
	Avatar media.File

	// Optional, nil if not provided
	CoverImage *media.File
}

// Create user uploading avatar and cover image first
// Username and email are stored lowercase
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	var user models.User

	username := strings.ToLower(strings.TrimSpace(params.Username))
	email := strings.ToLower(strings.TrimSpace(params.Email))
	fullName := strings.TrimSpace(params.FullName)
	if username == "" || email == "" || fullName == "" || strings.TrimSpace(params.Password) == "" {
		return user, apperrors.BadRequest("All fields are required")
	}

	_, err := s.storage.User().GetUserByLogin(ctx, username, email)
	switch {
	case err == nil:
		return user, apperrors.WithMessage(apperrors.ErrUserAlreadyExists, "User with email or username already exists")
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return user, fmt.Errorf("can't check user exists. Err: %w", err)
	}

	if params.Avatar.Body == nil {
		return user, apperrors.BadRequest("Avatar file is required")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	avatarURL, err := s.upload(ctx, params.Avatar, "avatar")
	if err != nil {
		return user, err
	}

	var coverURL string
	if params.CoverImage != nil && params.CoverImage.Body != nil {
		coverURL, err = s.upload(ctx, *params.CoverImage, "cover image")
		if err != nil {
			return user, err
		}
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       username,
		Email:          email,
		FullName:       fullName,
		AvatarURL:      avatarURL,
		CoverImageURL:  coverURL,
		HashedPassword: hash,
	})
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return user, apperrors.WithMessage(apperrors.ErrUserAlreadyExists, "User with email or username already exists")
	}
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Find user by username or email and check the password
func (s *UserService) Login(ctx context.Context, username string, email string, password string) (models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return models.User{}, apperrors.BadRequest("username or email is required")
	}

	user, err := s.storage.User().GetUserByLogin(ctx, username, email)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return models.User{}, apperrors.WithMessage(apperrors.ErrUserNotFound, "User does not exist")
	}
	if err != nil {
		return models.User{}, err
	}

	if err := s.VerifyPassword(user, password); err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Compare candidate password with the stored hash
func (s *UserService) VerifyPassword(user models.User, password string) error {
	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidCredentials, "Invalid user credentials")
	}
	return nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.BadRequest("New password is required")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.User().UpdatePassword(ctx, userID, hash)
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return models.User{}, apperrors.BadRequest("All fields are required")
	}

	user, err := s.storage.User().UpdateAccount(ctx, userID, fullName, email)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return user, apperrors.WithMessage(apperrors.ErrUserAlreadyExists, "Email is already taken")
	}
	return user, err
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, file media.File) (models.User, error) {
	if file.Body == nil {
		return models.User{}, apperrors.BadRequest("Avatar file is missing")
	}

	current, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	url, err := s.upload(ctx, file, "avatar")
	if err != nil {
		return models.User{}, err
	}

	updated, err := s.storage.User().UpdateAvatar(ctx, userID, url)
	if err != nil {
		s.forget(url)
		return updated, err
	}

	s.forget(current.AvatarURL)
	return updated, nil
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, file media.File) (models.User, error) {
	if file.Body == nil {
		return models.User{}, apperrors.BadRequest("Cover image file is missing")
	}

	current, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	url, err := s.upload(ctx, file, "cover image")
	if err != nil {
		return models.User{}, err
	}

	updated, err := s.storage.User().UpdateCoverImage(ctx, userID, url)
	if err != nil {
		s.forget(url)
		return updated, err
	}

	s.forget(current.CoverImageURL)
	return updated, nil
}

func (s *UserService) GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, apperrors.BadRequest("username is missing")
	}

	profile, err := s.storage.User().GetChannelProfile(ctx, username, viewerID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return profile, apperrors.WithMessage(apperrors.ErrUserNotFound, "channel does not exist")
	}
	return profile, err
}

// Watched videos, the most recent first
func (s *UserService) GetWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error) {
	return s.storage.User().ListWatchHistory(ctx, userID)
}

// Subscribe to the channel or unsubscribe if subscribed already
// Returns whether the subscriber is subscribed after the call
func (s *UserService) ToggleSubscription(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (bool, error) {
	if subscriberID == channelID {
		return false, apperrors.BadRequest("You can't subscribe to your own channel")
	}

	var subscribed bool
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		if _, err := storage.User().GetUserByID(ctx, channelID); err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.WithMessage(apperrors.ErrUserNotFound, "channel does not exist")
			}
			return err
		}

		removed, err := storage.Subscription().Unsubscribe(ctx, subscriberID, channelID)
		if err != nil || removed {
			return err
		}

		subscribed, err = storage.Subscription().Subscribe(ctx, subscriberID, channelID)
		return err
	})

	return subscribed, err
}

func (s *UserService) upload(ctx context.Context, file media.File, what string) (string, error) {
	asset, err := s.media.Upload(ctx, file)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.WithMessage(apperrors.ErrMediaUpload, "Error while uploading "+what), err)
	}
	if asset.URL == "" {
		return "", apperrors.WithMessage(apperrors.ErrMediaUpload, "Error while uploading "+what)
	}

	return asset.URL, nil
}

func (s *UserService) forget(url string) {
	if s.orphans != nil && url != "" {
		s.orphans.Forget(url)
	}
}
