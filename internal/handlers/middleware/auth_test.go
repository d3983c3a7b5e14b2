package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/models"
)

// Allow to use a function as auth service
// Token is taken from X-Token header
type authFunc func(ctx context.Context, token string) (models.User, error)

func (f authFunc) GetAccessString(r *http.Request) string {
	return r.Header.Get("X-Token")
}

func (f authFunc) Authenticate(ctx context.Context, token string) (models.User, error) {
	return f(ctx, token)
}

type errorLoggerFunc func(string, ...any)

func (f errorLoggerFunc) Error(msg string, v ...any) { f(msg, v...) }

func TestAuthMiddleware(t *testing.T) {
	// Simple handler that try to get user from context
	// If ok write it username to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set user to response or write error to response
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(user.Username))
	})

	errorsLogged := 0
	l := errorLoggerFunc(func(string, ...any) { errorsLogged++ })

	tests := []struct {
		name         string
		token        string
		auth         authFunc
		expectedCode int
		expectedBody string
	}{
		{
			name:  "auth ok",
			token: "good",
			auth: func(ctx context.Context, token string) (models.User, error) {
				return models.User{Username: "test-user"}, nil
			},
			expectedCode: http.StatusOK,
			expectedBody: "test-user",
		},
		{
			name:  "no token",
			token: "",
			auth: func(ctx context.Context, token string) (models.User, error) {
				t.Error("authenticate must not be called without token")
				return models.User{}, nil
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"statusCode":401,"data":null,"message":"Unauthorized request","success":false}`,
		},
		{
			name:  "verification error forwarded",
			token: "expired",
			auth: func(ctx context.Context, token string) (models.User, error) {
				return models.User{}, fmt.Errorf("%w: token is expired", apperrors.ErrInvalidToken)
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"statusCode":401,"data":null,"message":"invalid token: token is expired","success":false}`,
		},
		{
			name:  "user gone",
			token: "orphan",
			auth: func(ctx context.Context, token string) (models.User, error) {
				return models.User{}, apperrors.WithMessage(apperrors.ErrInvalidToken, "Invalid access token")
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"statusCode":401,"data":null,"message":"Invalid access token","success":false}`,
		},
		{
			name:  "storage failure",
			token: "good",
			auth: func(ctx context.Context, token string) (models.User, error) {
				return models.User{}, errors.New("connection refused")
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"statusCode":500,"data":null,"message":"Internal server error","success":false}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(AuthMiddleware(tt.auth, l)(handler))
			defer srv.Close()

			req, err := http.NewRequest(http.MethodGet, srv.URL+"/test", nil)
			require.NoError(t, err)
			if tt.token != "" {
				req.Header.Set("X-Token", tt.token)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "should make request to test server")
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "should read response body")
			defer resp.Body.Close() // nolint:errcheck

			require.Equalf(t, tt.expectedCode, resp.StatusCode, "unexpected status. Resp: %s", string(body))
			if tt.expectedCode == http.StatusOK {
				require.Equal(t, tt.expectedBody, string(body))
			} else {
				require.JSONEq(t, tt.expectedBody, string(body))
			}
		})
	}

	require.Equal(t, 1, errorsLogged, "only storage failure is logged")
}
