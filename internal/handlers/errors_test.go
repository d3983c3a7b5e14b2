package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
)

func Test_renderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		expected string
	}{
		{
			name:     "bad request with message",
			err:      apperrors.BadRequest("All fields are required"),
			code:     http.StatusBadRequest,
			expected: "All fields are required",
		},
		{
			name:     "message survives wrapping",
			err:      fmt.Errorf("%w: %w", apperrors.WithMessage(apperrors.ErrInvalidToken, "Invalid refresh token"), errors.New("token is expired")),
			code:     http.StatusUnauthorized,
			expected: "Invalid refresh token",
		},
		{
			name:     "bare kind uses default message",
			err:      apperrors.ErrVideoNotFound,
			code:     http.StatusNotFound,
			expected: "Video not found",
		},
		{
			name:     "forbidden",
			err:      fmt.Errorf("%w: caller is not the owner", apperrors.ErrForbidden),
			code:     http.StatusForbidden,
			expected: "Forbidden",
		},
		{
			name:     "conflict",
			err:      apperrors.WithMessage(apperrors.ErrUserAlreadyExists, "User with email or username already exists"),
			code:     http.StatusConflict,
			expected: "User with email or username already exists",
		},
		{
			name:     "refresh token reuse",
			err:      apperrors.ErrRefreshTokenIsUsed,
			code:     http.StatusUnauthorized,
			expected: "Refresh token is expired or used",
		},
		{
			name:     "upload failure",
			err:      fmt.Errorf("%w: %w", apperrors.WithMessage(apperrors.ErrMediaUpload, "Error while uploading avatar"), media.NewError(media.CodeUpstream, 500, errors.New("boom"))),
			code:     http.StatusBadGateway,
			expected: "Error while uploading avatar",
		},
		{
			name:     "bare provider error",
			err:      media.NewError(media.CodeRequest, 0, errors.New("dial tcp")),
			code:     http.StatusBadGateway,
			expected: "Media provider error",
		},
		{
			name:     "unknown error is hidden",
			err:      errors.New("pq: connection refused"),
			code:     http.StatusInternalServerError,
			expected: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()

			renderError(w, r, logger.NewNoOpLogger(), tt.err)

			require.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"statusCode":%d,"data":null,"message":%q,"success":false}`, tt.code, tt.expected), w.Body.String())
		})
	}
}

func Test_queryInt(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		wantErr  bool
	}{
		{"", 0, false},
		{"3", 3, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?page="+tt.raw, nil)

			n, err := queryInt(r, "page")

			if tt.wantErr {
				require.ErrorIs(t, err, apperrors.ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}
