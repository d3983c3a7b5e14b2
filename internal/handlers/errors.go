package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
)

// Known error kinds, their status and the message used when error carries none
var errorKinds = []struct {
	err     error
	code    int
	message string
}{
	{apperrors.ErrBadRequest, http.StatusBadRequest, "Bad request"},

	{apperrors.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid user credentials"},
	{apperrors.ErrRefreshTokenMismatch, http.StatusUnauthorized, "Refresh token is expired or used"},
	{apperrors.ErrRefreshTokenIsUsed, http.StatusUnauthorized, "Refresh token is expired or used"},
	{apperrors.ErrRefreshTokenNotFound, http.StatusUnauthorized, "Unauthorized request"},

	{apperrors.ErrForbidden, http.StatusForbidden, "Forbidden"},

	{apperrors.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{apperrors.ErrVideoNotFound, http.StatusNotFound, "Video not found"},
	{apperrors.ErrCommentNotFound, http.StatusNotFound, "Comment not found"},

	{apperrors.ErrUserAlreadyExists, http.StatusConflict, "User already exists"},

	{apperrors.ErrMediaUpload, http.StatusBadGateway, "Media upload failed"},
	{apperrors.ErrMediaDelete, http.StatusBadGateway, "Media delete failed"},
}

// The only place where service errors become responses.
// Unknown errors are logged and never shown to the caller
func renderError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	code, message := http.StatusInternalServerError, "Internal server error"

	var mediaErr *media.Error
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			code, message = kind.code, kind.message
			break
		}
	}
	if code == http.StatusInternalServerError && errors.As(err, &mediaErr) {
		code, message = http.StatusBadGateway, "Media provider error"
	}

	if code != http.StatusInternalServerError {
		if msg, ok := apperrors.Message(err); ok {
			message = msg
		}
	}

	if code >= http.StatusInternalServerError {
		l.Error("Request failed", "method", r.Method, "uri", r.RequestURI, "status", code, "error", err)
	}

	render.Error(w, message, code)
}
