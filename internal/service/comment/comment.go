package comment

import (
	"context"
	"errors"
	"html"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/service/policy"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type CommentService struct {
	storage   repository.Storage
	sanitizer *bluemonday.Policy
}

func NewService(storage repository.Storage) *CommentService {
	return &CommentService{
		storage:   storage,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Comments of the video, newest first
// Unpublished video comments are visible to the video owner only
func (s *CommentService) ListComments(ctx context.Context, videoID uuid.UUID, viewerID uuid.UUID, page int, limit int) (models.CommentPage, error) {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if page-1 > math.MaxInt/limit {
		return models.CommentPage{}, apperrors.BadRequest("Page is out of range")
	}

	if err := s.checkVisible(ctx, videoID, viewerID); err != nil {
		return models.CommentPage{}, err
	}

	comments, total, err := s.storage.Comment().ListComments(ctx, videoID, limit, (page-1)*limit)
	if err != nil {
		return models.CommentPage{}, err
	}

	return models.CommentPage{Comments: comments, TotalComments: total, Page: page, Limit: limit}, nil
}

func (s *CommentService) AddComment(ctx context.Context, videoID uuid.UUID, ownerID uuid.UUID, content string) (models.Comment, error) {
	content = s.clean(content)
	if content == "" {
		return models.Comment{}, apperrors.BadRequest("Content is required")
	}

	if err := s.checkVisible(ctx, videoID, ownerID); err != nil {
		return models.Comment{}, err
	}

	return s.storage.Comment().CreateComment(ctx, videoID, ownerID, content)
}

// Replace comment content. Author only
func (s *CommentService) UpdateComment(ctx context.Context, commentID uuid.UUID, callerID uuid.UUID, content string) (models.Comment, error) {
	content = s.clean(content)
	if content == "" {
		return models.Comment{}, apperrors.BadRequest("Content is required")
	}

	_, err := policy.Authorize(ctx, callerID, s.loader(commentID))
	if errors.Is(err, apperrors.ErrForbidden) {
		return models.Comment{}, apperrors.WithMessage(apperrors.ErrForbidden, "You don't have permission to update this comment")
	}
	if err != nil {
		return models.Comment{}, err
	}

	return s.storage.Comment().UpdateComment(ctx, commentID, content)
}

// Author only
func (s *CommentService) DeleteComment(ctx context.Context, commentID uuid.UUID, callerID uuid.UUID) error {
	_, err := policy.Authorize(ctx, callerID, s.loader(commentID))
	if errors.Is(err, apperrors.ErrForbidden) {
		return apperrors.WithMessage(apperrors.ErrForbidden, "You don't have permission to delete this comment")
	}
	if err != nil {
		return err
	}

	return s.storage.Comment().DeleteComment(ctx, commentID)
}

func (s *CommentService) loader(commentID uuid.UUID) func(context.Context) (models.Comment, error) {
	return func(ctx context.Context) (models.Comment, error) {
		return s.storage.Comment().GetComment(ctx, commentID)
	}
}

func (s *CommentService) checkVisible(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID) error {
	video, err := s.storage.Video().GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if !video.IsPublished && video.OwnerID != callerID {
		return apperrors.ErrVideoNotFound
	}
	return nil
}

// Strip markup keeping the text as typed
func (s *CommentService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}
