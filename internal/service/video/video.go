package video

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/media"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/service/policy"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	SortAsc  = "asc"
	SortDesc = "desc"
)

var sortColumns = map[string]bool{
	"createdAt": true,
	"views":     true,
	"duration":  true,
	"title":     true,
}

type VideoService struct {
	storage   repository.Storage
	media     media.Uploader
	sanitizer *bluemonday.Policy
	logger    logger.Logger

	// Deletes orphan uploads in background. Nil means delete in place
	orphans orphanCollector
}

type orphanCollector interface {
	Forget(assetURL string)
}

type Option func(*VideoService)

// Hand orphan uploads over to background collector, janitor.Janitor for example
func WithOrphanCollector(c orphanCollector) Option {
	return func(s *VideoService) {
		s.orphans = c
	}
}

func NewService(storage repository.Storage, uploader media.Uploader, l logger.Logger, opts ...Option) *VideoService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	s := &VideoService{
		storage:   storage,
		media:     uploader,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    l,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type ListVideosParams struct {
	Page  int
	Limit int

	// Case insensitive part of the title
	Query string

	// One of createdAt, views, duration, title. Default createdAt
	SortBy string

	// asc or desc. Default desc
	SortType string

	// Only videos of the user if set
	UserID uuid.UUID

	// Who is asking. Sees own unpublished videos when filters by own id
	ViewerID uuid.UUID
}

func (s *VideoService) ListVideos(ctx context.Context, params ListVideosParams) (models.VideoPage, error) {
	page, limit := params.Page, params.Limit
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
		return models.VideoPage{}, apperrors.BadRequest("Page is out of range")
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if !sortColumns[sortBy] {
		return models.VideoPage{}, apperrors.BadRequest("sortBy must be one of createdAt, views, duration, title")
	}

	sortType := strings.ToLower(params.SortType)
	if sortType == "" {
		sortType = SortDesc
	}
	if sortType != SortAsc && sortType != SortDesc {
		return models.VideoPage{}, apperrors.BadRequest("sortType must be asc or desc")
	}

	videos, total, err := s.storage.Video().ListVideos(ctx, repository.ListVideosParams{
		Query:              strings.TrimSpace(params.Query),
		OwnerID:            params.UserID,
		IncludeUnpublished: params.UserID != uuid.Nil && params.UserID == params.ViewerID,
		SortBy:             sortBy,
		SortDesc:           sortType == SortDesc,
		Limit:              limit,
		Offset:             (page - 1) * limit,
	})
	if err != nil {
		return models.VideoPage{}, fmt.Errorf("can't list videos. Err: %w", err)
	}

	return models.VideoPage{Videos: videos, TotalVideos: total, Page: page, Limit: limit}, nil
}

type PublishVideoParams struct {
	Title       string
	Description string
	VideoFile   media.File
	Thumbnail   media.File
}

// Upload video and thumbnail and create the record owned by ownerID
func (s *VideoService) PublishVideo(ctx context.Context, ownerID uuid.UUID, params PublishVideoParams) (models.Video, error) {
	title := s.clean(params.Title)
	description := s.clean(params.Description)
	if title == "" || description == "" {
		return models.Video{}, apperrors.BadRequest("Title and description are required")
	}
	if params.VideoFile.Body == nil {
		return models.Video{}, apperrors.BadRequest("Video file is required")
	}
	if params.Thumbnail.Body == nil {
		return models.Video{}, apperrors.BadRequest("Thumbnail is required")
	}

	videoAsset, err := s.upload(ctx, params.VideoFile, "video")
	if err != nil {
		return models.Video{}, err
	}

	thumbnail, err := s.upload(ctx, params.Thumbnail, "thumbnail")
	if err != nil {
		s.forget(ctx, videoAsset.URL)
		return models.Video{}, err
	}

	video, err := s.storage.Video().CreateVideo(ctx, repository.CreateVideoParams{
		OwnerID:      ownerID,
		VideoFileURL: videoAsset.URL,
		ThumbnailURL: thumbnail.URL,
		Title:        title,
		Description:  description,
		Duration:     videoAsset.Duration,
	})
	if err != nil {
		s.forget(ctx, videoAsset.URL)
		s.forget(ctx, thumbnail.URL)
		return models.Video{}, fmt.Errorf("can't create video. Err: %w", err)
	}

	return video, nil
}

// Get video counting the view and remembering it in the viewer history
// Unpublished videos are visible to the owner only
func (s *VideoService) GetVideo(ctx context.Context, videoID uuid.UUID, viewerID uuid.UUID) (models.Video, error) {
	video, err := s.storage.Video().GetVideo(ctx, videoID)
	if err != nil {
		return video, err
	}
	if !video.IsPublished && video.OwnerID != viewerID {
		return models.Video{}, apperrors.ErrVideoNotFound
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		if err := storage.Video().IncrementViews(ctx, videoID); err != nil {
			return err
		}
		return storage.User().AddToWatchHistory(ctx, viewerID, videoID)
	})
	if err != nil {
		return models.Video{}, fmt.Errorf("can't record the view. Err: %w", err)
	}

	video.Views++
	return video, nil
}

type UpdateVideoParams struct {
	Title       string
	Description string
	Thumbnail   media.File
}

// Replace title, description and thumbnail. Owner only
// The previous thumbnail is dropped once the record points to the new one
func (s *VideoService) UpdateVideo(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID, params UpdateVideoParams) (models.Video, error) {
	title := s.clean(params.Title)
	description := s.clean(params.Description)
	if title == "" || description == "" || params.Thumbnail.Body == nil {
		return models.Video{}, apperrors.BadRequest("All fields are required")
	}

	video, err := policy.Authorize(ctx, callerID, s.loader(videoID))
	if err != nil {
		return video, forbidden(err, "You don't have permission to update this video")
	}

	thumbnail, err := s.upload(ctx, params.Thumbnail, "thumbnail")
	if err != nil {
		return models.Video{}, err
	}

	updated, err := s.storage.Video().UpdateVideo(ctx, videoID, title, description, thumbnail.URL)
	if err != nil {
		s.forget(ctx, thumbnail.URL)
		return models.Video{}, fmt.Errorf("can't update video. Err: %w", err)
	}

	s.forget(ctx, video.ThumbnailURL)
	return updated, nil
}

// Remove video with its media and comments. Owner only
func (s *VideoService) DeleteVideo(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID) error {
	video, err := policy.Authorize(ctx, callerID, s.loader(videoID))
	if err != nil {
		return forbidden(err, "You don't have permission to delete this video")
	}

	if err := s.remove(ctx, video.VideoFileURL, "video"); err != nil {
		return err
	}
	if err := s.remove(ctx, video.ThumbnailURL, "thumbnail"); err != nil {
		return err
	}

	return s.storage.Video().DeleteVideo(ctx, videoID)
}

func (s *VideoService) TogglePublishStatus(ctx context.Context, videoID uuid.UUID, callerID uuid.UUID) (models.Video, error) {
	video, err := policy.Authorize(ctx, callerID, s.loader(videoID))
	if err != nil {
		return video, forbidden(err, "You don't have permission to toggle this video")
	}

	return s.storage.Video().SetPublished(ctx, videoID, !video.IsPublished)
}

func (s *VideoService) loader(videoID uuid.UUID) func(context.Context) (models.Video, error) {
	return func(ctx context.Context) (models.Video, error) {
		return s.storage.Video().GetVideo(ctx, videoID)
	}
}

// Strip markup keeping the text as typed
func (s *VideoService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func (s *VideoService) upload(ctx context.Context, file media.File, what string) (media.Asset, error) {
	asset, err := s.media.Upload(ctx, file)
	if err != nil {
		return asset, fmt.Errorf("%w: %w", apperrors.WithMessage(apperrors.ErrMediaUpload, "Error while uploading "+what), err)
	}
	if asset.URL == "" {
		return asset, apperrors.WithMessage(apperrors.ErrMediaUpload, "Error while uploading "+what)
	}
	return asset, nil
}

func (s *VideoService) remove(ctx context.Context, url string, what string) error {
	result, err := s.media.Delete(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.WithMessage(apperrors.ErrMediaDelete, "Error while deleting "+what), err)
	}
	if result != "ok" {
		return apperrors.WithMessage(apperrors.ErrMediaDelete, "Error while deleting "+what)
	}
	return nil
}

// Best effort cleanup of an uploaded asset nobody refers to
func (s *VideoService) forget(ctx context.Context, url string) {
	if s.orphans != nil {
		s.orphans.Forget(url)
		return
	}
	if _, err := s.media.Delete(ctx, url); err != nil {
		s.logger.Warn("Failed to delete orphan media", "url", url, "error", err)
	}
}

func forbidden(err error, msg string) error {
	if errors.Is(err, apperrors.ErrForbidden) {
		return apperrors.WithMessage(apperrors.ErrForbidden, msg)
	}
	return err
}
