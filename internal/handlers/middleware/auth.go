package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/models"
)

type authenticator interface {
	// Access token from request, empty if none
	GetAccessString(r *http.Request) string

	// Has to return error wrapping apperrors.ErrInvalidToken if token is not acceptable
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Reject requests without valid access token, put the user into request context otherwise
func AuthMiddleware(as authenticator, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := as.GetAccessString(r)
			if token == "" {
				render.Error(w, "Unauthorized request", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, apperrors.ErrInvalidToken):
				msg, ok := apperrors.Message(err)
				if !ok {
					msg = err.Error()
				}
				render.Error(w, msg, http.StatusUnauthorized)
				return
			default:
				l.Error("Failed to authenticate request", "uri", r.RequestURI, "error", err)
				render.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), user)))
		})
	}
}
