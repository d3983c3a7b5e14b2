package logger

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Configure global sentry client. Empty dsn disables reporting
func InitSentry(dsn string, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// Wait for buffered events to be sent
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
