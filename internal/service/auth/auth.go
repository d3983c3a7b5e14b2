package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/service/user"
)

const (
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
)

// Issues and verifies tokens. Implemented by tokenmanager.TokenManager
type TokenManager interface {
	GeneratePair(user models.User) (models.TokenPair, error)
	ParseAccess(access string) (uuid.UUID, error)
	ParseRefresh(refresh string) (uuid.UUID, error)
}

type Config struct {
	// Mark auth cookies as Secure. Enable everywhere but local development
	SecureCookies bool
}

type LoginResult struct {
	User models.PublicUser
	Pair models.TokenPair
}

// Session lifecycle: registration, login, logout, tokens rotation
type AuthService struct {
	tokenManager TokenManager
	users        *user.UserService
	storage      repository.Storage

	secureCookies     bool
	accessCookieName  string
	refreshCookieName string
	accessHeaderName  string
	accessAuthScheme  string
}

func NewService(cfg Config, tokenManager TokenManager, users *user.UserService, storage repository.Storage) (*AuthService, error) {
	if tokenManager == nil || users == nil || storage == nil {
		return nil, errors.New("token manager, user service and storage are required")
	}

	return &AuthService{
		tokenManager:      tokenManager,
		users:             users,
		storage:           storage,
		secureCookies:     cfg.SecureCookies,
		accessCookieName:  defaultAccessCookieName,
		refreshCookieName: defaultRefreshCookieName,
		accessHeaderName:  defaultAccessHeaderName,
		accessAuthScheme:  defaultAccessAuthScheme,
	}, nil
}

// Create user. No tokens issued, the user has to log in
func (s *AuthService) Register(ctx context.Context, params user.CreateUserParams) (models.PublicUser, error) {
	u, err := s.users.CreateUser(ctx, params)
	if err != nil {
		return models.PublicUser{}, err
	}

	return u.Public(), nil
}

// Check credentials, issue token pair and store the refresh token
// On wrong credentials nothing is stored
func (s *AuthService) Login(ctx context.Context, username string, email string, password string) (LoginResult, error) {
	u, err := s.users.Login(ctx, username, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	pair, err := s.tokenManager.GeneratePair(u)
	if err != nil {
		return LoginResult{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	if _, err := s.storage.User().SetRefreshToken(ctx, u.ID, &pair.Refresh.Value); err != nil {
		return LoginResult{}, fmt.Errorf("refresh token could not be stored. %w", err)
	}

	return LoginResult{User: u.Public(), Pair: pair}, nil
}

// Forget the stored refresh token. Safe to call many times
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	_, err := s.storage.User().SetRefreshToken(ctx, userID, nil)
	return err
}

// Exchange valid refresh token for a new pair
//
// The presented token must equal the stored one. Rotation is compare-and-swap on the
// token version, so of concurrent refreshes with the same token only one wins
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	if refresh == "" {
		return models.TokenPair{}, apperrors.WithMessage(apperrors.ErrRefreshTokenNotFound, "Unauthorized request")
	}

	userID, err := s.tokenManager.ParseRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.WithMessage(apperrors.ErrInvalidToken, "Invalid refresh token"), err)
	}

	u, err := s.storage.User().GetUserByID(ctx, userID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return models.TokenPair{}, apperrors.WithMessage(apperrors.ErrInvalidToken, "Invalid refresh token")
	}
	if err != nil {
		return models.TokenPair{}, err
	}

	if u.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(refresh)) != 1 {
		return models.TokenPair{}, apperrors.WithMessage(apperrors.ErrRefreshTokenMismatch, "Refresh token is expired or used")
	}

	pair, err := s.tokenManager.GeneratePair(u)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	_, err = s.storage.User().RotateRefreshToken(ctx, u.ID, u.RefreshTokenVersion, pair.Refresh.Value)
	if errors.Is(err, apperrors.ErrRefreshTokenIsUsed) {
		return models.TokenPair{}, apperrors.WithMessage(apperrors.ErrRefreshTokenIsUsed, "Refresh token is expired or used")
	}
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error {
	u, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.VerifyPassword(u, oldPassword); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidCredentials, "Invalid old password")
	}

	return s.users.UpdatePassword(ctx, u.ID, newPassword)
}

// Resolve access token to the user it was issued for
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	userID, err := s.tokenManager.ParseAccess(access)
	if err != nil {
		return models.User{}, err
	}

	u, err := s.storage.User().GetUserByID(ctx, userID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return models.User{}, apperrors.WithMessage(apperrors.ErrInvalidToken, "Invalid access token")
	}

	return u, err
}

// Set auth tokens (access, refresh) to response cookies
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.accessCookieName, pair.Access.Value, pair.Access.ExpiresAt))
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh.Value, pair.Refresh.ExpiresAt))
}

// Expire both auth cookies
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		c := s.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// Refresh token from cookie, empty if absent
func (s *AuthService) GetRefreshString(r *http.Request) string {
	c, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Access token from cookie first, then from 'Authorization: Bearer <token>' header
func (s *AuthService) GetAccessString(r *http.Request) string {
	if c, err := r.Cookie(s.accessCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	scheme, token, ok := strings.Cut(r.Header.Get(s.accessHeaderName), " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *AuthService) cookie(name string, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
