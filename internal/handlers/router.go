package handlers

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/handlers/middleware"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/ratelimit"
	"github.com/nkiryanov/vidtube/internal/service/auth"
	"github.com/nkiryanov/vidtube/internal/service/user"
	"github.com/nkiryanov/vidtube/internal/service/video"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Build the API handler. Login is not rate limited if loginLimiter is nil
// X-Forwarded-For is honored only from trustedProxies
func NewRouter(
	authService authService,
	userService userService,
	videoService videoService,
	commentService commentService,
	loginLimiter ratelimit.Limiter,
	trustedProxies []*net.IPNet,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService, logger)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	limitLogin := func(h http.Handler) http.Handler {
		if loginLimiter == nil {
			return h
		}
		return middleware.RateLimitMiddleware("login", loginLimiter, logger)(h)
	}

	api := http.NewServeMux()

	api.Handle("GET /healthcheck", handleHealthcheck())

	api.Handle("POST /users/register", handleRegister(authService, logger))
	api.Handle("POST /users/login", limitLogin(handleLogin(authService, logger)))
	api.Handle("POST /users/refresh-token", handleRefreshToken(authService, logger))
	api.Handle("POST /users/logout", withAuth(handleLogout(authService, logger)))
	api.Handle("POST /users/change-password", withAuth(handleChangePassword(authService, logger)))
	api.Handle("GET /users/current-user", withAuth(handleCurrentUser()))
	api.Handle("PATCH /users/update-account", withAuth(handleUpdateAccount(userService, logger)))
	api.Handle("PATCH /users/avatar", withAuth(handleUpdateAvatar(userService, logger)))
	api.Handle("PATCH /users/cover-image", withAuth(handleUpdateCoverImage(userService, logger)))
	api.Handle("GET /users/c/{username}", withAuth(handleChannelProfile(userService, logger)))
	api.Handle("GET /users/history", withAuth(handleWatchHistory(userService, logger)))
	api.Handle("POST /subscriptions/c/{channelId}", withAuth(handleToggleSubscription(userService, logger)))

	api.Handle("GET /videos", withAuth(handleListVideos(videoService, logger)))
	api.Handle("POST /videos", withAuth(handlePublishVideo(videoService, logger)))
	api.Handle("GET /videos/{videoId}", withAuth(handleGetVideo(videoService, logger)))
	api.Handle("PATCH /videos/{videoId}", withAuth(handleUpdateVideo(videoService, logger)))
	api.Handle("DELETE /videos/{videoId}", withAuth(handleDeleteVideo(videoService, logger)))
	api.Handle("PATCH /videos/toggle/publish/{videoId}", withAuth(handleTogglePublish(videoService, logger)))

	api.Handle("GET /comments/{videoId}", withAuth(handleListComments(commentService, logger)))
	api.Handle("POST /comments/{videoId}", withAuth(handleAddComment(commentService, logger)))
	api.Handle("PATCH /comments/c/{commentId}", withAuth(handleUpdateComment(commentService, logger)))
	api.Handle("DELETE /comments/c/{commentId}", withAuth(handleDeleteComment(commentService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	handler := chain(root,
		middleware.ClientIPMiddleware(middleware.NewIPExtractor(trustedProxies)),
		middleware.RecoverMiddleware(logger),
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

func handleHealthcheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, map[string]string{"status": "ok"}, "Service is healthy")
	})
}

type authService interface {
	// Create user. Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	Register(ctx context.Context, params user.CreateUserParams) (models.PublicUser, error)

	// Check credentials and issue token pair
	// Has to return apperrors.ErrUserNotFound or apperrors.ErrInvalidCredentials on failure
	Login(ctx context.Context, username string, email string, password string) (auth.LoginResult, error)

	Logout(ctx context.Context, userID uuid.UUID) error

	// Exchange refresh token for a new pair. The presented token is not accepted twice
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error

	// Resolve access token to the user. Used by the auth middleware
	Authenticate(ctx context.Context, access string) (models.User, error)

	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)
	GetRefreshString(r *http.Request) string
	GetAccessString(r *http.Request) string
}

type userService interface {
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, file media.File) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, file media.File) (models.User, error)
	GetChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error)
	GetWatchHistory(ctx context.Context, userID uuid.UUID) ([]models.Video, error)
	ToggleSubscription(ctx context.Context, subscriberID uuid.UUID, channelID uuid.UUID) (bool, error)
}

type videoService interface {
	ListVideos(ctx context.Context, params video.ListVideosParams) (models.VideoPage, error)
	PublishVideo(ctx context.Context, ownerID uuid.UUID, params video.PublishVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, videoID uuid.UUID, viewerID uuid.UUID) (models.Video, error)

	// Owner only, others get apperrors.ErrForbidden
	UpdateVideo(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID, params video.UpdateVideoParams) (models.Video, error)
	DeleteVideo(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID) error
	TogglePublishStatus(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID) (models.Video, error)
}

type commentService interface {
	ListComments(ctx context.Context, videoID uuid.UUID, viewerID uuid.UUID, page int, limit int) (models.CommentPage, error)
	AddComment(ctx context.Context, videoID uuid.UUID, ownerID uuid.UUID, content string) (models.Comment, error)

	// Owner only, others get apperrors.ErrForbidden
	UpdateComment(ctx context.Context, commentID uuid.UUID, callerID uuid.UUID, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, commentID uuid.UUID, callerID uuid.UUID) error
}
