package apperrors

import (
	"errors"
)

var (
	// Wrap with BadRequest to give the caller a message
	ErrBadRequest = errors.New("bad request")

	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid user credentials")

	ErrInvalidToken         = errors.New("invalid token")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenMismatch = errors.New("refresh token is expired or used")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")

	ErrForbidden = errors.New("forbidden")

	ErrVideoNotFound   = errors.New("video not found")
	ErrCommentNotFound = errors.New("comment not found")

	ErrMediaUpload = errors.New("media upload failed")
	ErrMediaDelete = errors.New("media delete failed")
)

// BadRequest returns ErrBadRequest carrying the message shown to the caller
func BadRequest(msg string) error {
	return &messageError{msg: msg, kind: ErrBadRequest}
}

// WithMessage attaches the message shown to the caller to a known error kind
func WithMessage(kind error, msg string) error {
	return &messageError{msg: msg, kind: kind}
}

type messageError struct {
	msg  string
	kind error
}

func (e *messageError) Error() string {
	return e.msg
}

func (e *messageError) Unwrap() error {
	return e.kind
}

// Message returns the caller facing message if err carries one
func Message(err error) (string, bool) {
	var me *messageError
	if errors.As(err, &me) {
		return me.msg, true
	}
	return "", false
}
