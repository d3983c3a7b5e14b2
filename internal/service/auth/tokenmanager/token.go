package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 10 * 24 * time.Hour
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`

	// Either 'access' or 'refresh', so one kind of token is never accepted as the other
	Type string `json:"typ"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secrets to sign access and refresh tokens
	// Both required and must differ
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issues and verifies token pairs
// Has no state besides the config it was created with
type TokenManager struct {
	cfg Config
	alg jwt.SigningMethod
}

func New(cfg Config) (*TokenManager, error) {
	switch {
	case cfg.AccessSecret == "":
		return nil, errors.New("access secret must not be empty")
	case cfg.RefreshSecret == "":
		return nil, errors.New("refresh secret must not be empty")
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, errors.New("access and refresh secrets must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, HMAC expected", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{cfg: cfg, alg: alg}, nil
}

// Issue access and refresh tokens for the user
// Caller is responsible to store the refresh token
func (m *TokenManager) GeneratePair(user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)

	access, err := m.sign(typeAccess, user.ID, now, m.cfg.AccessTTL, m.cfg.AccessSecret)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, err := m.sign(typeRefresh, user.ID, now, m.cfg.RefreshTTL, m.cfg.RefreshSecret)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) sign(typ string, userID uuid.UUID, now time.Time, ttl time.Duration, secret string) (models.IssuedToken, error) {
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Type:   typ,
	})

	value, err := token.SignedString([]byte(secret))
	if err != nil {
		return models.IssuedToken{}, err
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Parse and validate access token
// Any failure is wrapped into apperrors.ErrInvalidToken
func (m *TokenManager) ParseAccess(access string) (uuid.UUID, error) {
	return m.parse(access, typeAccess, m.cfg.AccessSecret)
}

// Parse and validate refresh token
// Any failure is wrapped into apperrors.ErrInvalidToken
func (m *TokenManager) ParseRefresh(refresh string) (uuid.UUID, error) {
	return m.parse(refresh, typeRefresh, m.cfg.RefreshSecret)
}

func (m *TokenManager) parse(value string, typ string, secret string) (uuid.UUID, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err != nil:
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	case claims.Type != typ:
		return uuid.Nil, fmt.Errorf("%w: %s token expected", apperrors.ErrInvalidToken, typ)
	case claims.UserID == uuid.Nil:
		return uuid.Nil, fmt.Errorf("%w: token has no user", apperrors.ErrInvalidToken)
	}

	return claims.UserID, nil
}
