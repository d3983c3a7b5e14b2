// Package janitor deletes media assets nothing refers to anymore.
// Deletion runs in background workers so requests never wait for the provider
package janitor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
)

const (
	defaultCountWorkers = 2
	defaultQueueSize    = 256
	defaultMaxAttempts  = 3
	defaultRetryDelay   = 5 * time.Second
)

type deleter interface {
	Delete(ctx context.Context, assetURL string) (string, error)
}

type Config struct {
	CountWorkers int
	QueueSize    int

	// Attempts per asset before it is given up
	MaxAttempts int

	// Pause of all workers after provider rate limited us, and between attempts
	RetryDelay time.Duration
}

type job struct {
	url     string
	attempt int
}

type Janitor struct {
	cfg    Config
	queue  chan job
	media  deleter
	logger logger.Logger

	// Provider may rate limit deletes; workers wait until the time is up
	waitUntil atomic.Int64
}

func New(cfg Config, media deleter, l logger.Logger) *Janitor {
	setDefault := func(field *int, def int) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefault(&cfg.CountWorkers, defaultCountWorkers)
	setDefault(&cfg.QueueSize, defaultQueueSize)
	setDefault(&cfg.MaxAttempts, defaultMaxAttempts)
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Janitor{
		cfg:    cfg,
		queue:  make(chan job, cfg.QueueSize),
		media:  media,
		logger: l,
	}
}

// Schedule asset deletion. Never blocks: if the queue is full the asset is dropped and logged
func (j *Janitor) Forget(assetURL string) {
	j.enqueue(job{url: assetURL, attempt: 1})
}

func (j *Janitor) enqueue(jb job) bool {
	select {
	case j.queue <- jb:
		return true
	default:
		j.logger.Warn("Janitor queue is full, asset left behind", "url", jb.url)
		return false
	}
}

// Start workers. The returned channel is closed when all of them stopped after ctx is done
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range j.cfg.CountWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.worker(ctx)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		j.logger.Debug("Janitor stopped")
	}()

	return idleStopped
}

func (j *Janitor) worker(ctx context.Context) {
	for {
		// Wait until rate limit is passed or context is done
		if waitUntil := time.UnixMilli(j.waitUntil.Load()); waitUntil.After(time.Now()) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(waitUntil)):
			}
		}

		select {
		case <-ctx.Done():
			return
		case jb := <-j.queue:
			j.process(ctx, jb)
		}
	}
}

func (j *Janitor) process(ctx context.Context, jb job) {
	result, err := j.media.Delete(ctx, jb.url)

	var mediaErr *media.Error
	switch {
	case err == nil && (result == "ok" || result == "not found"):
		j.logger.Debug("Asset deleted", "url", jb.url, "result", result)
		return

	case err == nil:
		j.logger.Warn("Asset not deleted", "url", jb.url, "result", result)
		return

	case errors.As(err, &mediaErr) && mediaErr.Code == media.CodeBadURL:
		j.logger.Warn("Not an asset url, skipped", "url", jb.url, "error", err)
		return

	case errors.As(err, &mediaErr) && mediaErr.Status == http.StatusTooManyRequests:
		j.logger.Info("Media provider rate limit exceeded, waiting", "retry_after", j.cfg.RetryDelay)
		j.waitUntil.Store(time.Now().Add(j.cfg.RetryDelay).UnixMilli())
	}

	if jb.attempt >= j.cfg.MaxAttempts || ctx.Err() != nil {
		j.logger.Error("Failed to delete asset", "url", jb.url, "attempt", jb.attempt, "error", err)
		return
	}

	jb.attempt++
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(j.cfg.RetryDelay):
			j.enqueue(jb)
		}
	}()
}
