package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/vidtube/internal/db"
	"github.com/nkiryanov/vidtube/internal/handlers"
	"github.com/nkiryanov/vidtube/internal/handlers/middleware"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
	"github.com/nkiryanov/vidtube/internal/ratelimit"
	"github.com/nkiryanov/vidtube/internal/repository/postgres"
	"github.com/nkiryanov/vidtube/internal/service/auth"
	"github.com/nkiryanov/vidtube/internal/service/auth/hasher"
	"github.com/nkiryanov/vidtube/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/vidtube/internal/service/comment"
	"github.com/nkiryanov/vidtube/internal/service/janitor"
	"github.com/nkiryanov/vidtube/internal/service/user"
	"github.com/nkiryanov/vidtube/internal/service/video"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	janitor *janitor.Janitor
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	if err := logger.InitSentry(c.SentryDSN, c.Environment); err != nil {
		return nil, fmt.Errorf("error while initializing sentry: %w", err)
	}

	uploader, err := media.NewCloudinary(c.CloudinaryURL, l.With("component", "cloudinary"))
	if err != nil {
		return nil, fmt.Errorf("error while configuring media provider. Err: %w", err)
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		logger:     l,
		pool:       pool,
		janitor:    janitor.New(janitor.Config{}, uploader, l.With("component", "janitor")),
	}

	var loginLimiter ratelimit.Limiter
	if c.RedisURL != "" {
		app.redis, err = ratelimit.NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		loginLimiter, err = ratelimit.NewRedisLimiter(app.redis, c.LoginRateLimit, loginRateWindow)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
		}
	} else {
		l.Warn("REDIS_URL is not set, login is not rate limited")
	}

	trustedProxies, err := middleware.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		app.Close()
		return nil, err
	}

	// Initialize services
	storage := postgres.NewStorage(pool)
	userService := user.NewService(hasher.Default, storage, uploader, user.WithOrphanCollector(app.janitor))
	authService, err := auth.NewService(
		auth.Config{SecureCookies: c.Environment == logger.EnvProduction},
		tokenManager,
		userService,
		storage,
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.Handler = handlers.NewRouter(
		authService,
		userService,
		video.NewService(storage, uploader, l.With("component", "video"), video.WithOrphanCollector(app.janitor)),
		comment.NewService(storage),
		loginLimiter,
		trustedProxies,
		l,
	)

	return app, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	janitorStopped := s.janitor.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-janitorStopped

	return err
}

// Release connections. Call after Run returned
func (s *ServerApp) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.pool.Close()
	logger.FlushSentry()
}
