package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

// Video fields with owner summary. Expects videos aliased as 'v' and owners as 'u'
const videoColumns = `
	v.id, v.owner_id, v.video_file_url, v.thumbnail_url, v.title, v.description, v.duration,
	v.views, v.is_published, v.created_at, v.updated_at,
	u.id, u.username, u.full_name, u.avatar_url
`

// Columns listing could be sorted by
var videoSortColumns = map[string]string{
	"createdAt": "v.created_at",
	"views":     "v.views",
	"duration":  "v.duration",
	"title":     "v.title",
}

type VideoRepo struct {
	DB DBTX
}

const createVideo = `-- name: CreateVideo
WITH v AS (
	INSERT INTO videos (id, owner_id, video_file_url, thumbnail_url, title, description, duration)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING *
)
SELECT ` + videoColumns + `
FROM v JOIN users u ON u.id = v.owner_id
`

func (r *VideoRepo) CreateVideo(ctx context.Context, p repository.CreateVideoParams) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, createVideo,
		uuid.New(), p.OwnerID, p.VideoFileURL, p.ThumbnailURL, p.Title, p.Description, p.Duration,
	)
	video, err := pgx.CollectOneRow(rows, rowToVideo)
	if err != nil {
		return video, fmt.Errorf("db error: %w", err)
	}
	return video, nil
}

const getVideo = `-- name: GetVideo
SELECT ` + videoColumns + `
FROM videos v JOIN users u ON u.id = v.owner_id
WHERE v.id = $1
`

func (r *VideoRepo) GetVideo(ctx context.Context, videoID uuid.UUID) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, getVideo, videoID)
	return collectVideo(rows)
}

const videoFilter = `
WHERE v.title ILIKE $1
	AND ($2::uuid IS NULL OR v.owner_id = $2::uuid)
	AND ($3::boolean OR v.is_published)
`

const countVideos = `-- name: CountVideos
SELECT COUNT(*) FROM videos v
` + videoFilter

const listVideos = `-- name: ListVideos
SELECT ` + videoColumns + `
FROM videos v JOIN users u ON u.id = v.owner_id
` + videoFilter + `
ORDER BY %[1]s %[2]s, v.id %[2]s
LIMIT $4 OFFSET $5
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *VideoRepo) ListVideos(ctx context.Context, p repository.ListVideosParams) ([]models.Video, int64, error) {
	column, ok := videoSortColumns[p.SortBy]
	if !ok {
		column = videoSortColumns["createdAt"]
	}
	direction := "ASC"
	if p.SortDesc {
		direction = "DESC"
	}

	var owner *uuid.UUID
	if p.OwnerID != uuid.Nil {
		owner = &p.OwnerID
	}
	pattern := "%" + likeEscaper.Replace(p.Query) + "%"

	var total int64
	err := r.DB.QueryRow(ctx, countVideos, pattern, owner, p.IncludeUnpublished).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, fmt.Sprintf(listVideos, column, direction),
		pattern, owner, p.IncludeUnpublished, p.Limit, p.Offset,
	)
	videos, err := pgx.CollectRows(rows, rowToVideo)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return videos, total, nil
}

const updateVideo = `-- name: UpdateVideo
WITH v AS (
	UPDATE videos
	SET title = $2, description = $3, thumbnail_url = $4, updated_at = NOW()
	WHERE id = $1
	RETURNING *
)
SELECT ` + videoColumns + `
FROM v JOIN users u ON u.id = v.owner_id
`

func (r *VideoRepo) UpdateVideo(ctx context.Context, videoID uuid.UUID, title string, description string, thumbnailURL string) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, updateVideo, videoID, title, description, thumbnailURL)
	return collectVideo(rows)
}

const deleteVideo = `-- name: DeleteVideo
DELETE FROM videos WHERE id = $1
`

func (r *VideoRepo) DeleteVideo(ctx context.Context, videoID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteVideo, videoID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrVideoNotFound
	default:
		return nil
	}
}

const setPublished = `-- name: SetPublished
WITH v AS (
	UPDATE videos
	SET is_published = $2, updated_at = NOW()
	WHERE id = $1
	RETURNING *
)
SELECT ` + videoColumns + `
FROM v JOIN users u ON u.id = v.owner_id
`

func (r *VideoRepo) SetPublished(ctx context.Context, videoID uuid.UUID, published bool) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, setPublished, videoID, published)
	return collectVideo(rows)
}

const incrementViews = `-- name: IncrementViews
UPDATE videos SET views = views + 1 WHERE id = $1
`

func (r *VideoRepo) IncrementViews(ctx context.Context, videoID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, incrementViews, videoID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrVideoNotFound
	default:
		return nil
	}
}

func collectVideo(rows pgx.Rows) (models.Video, error) {
	video, err := pgx.CollectOneRow(rows, rowToVideo)

	switch {
	case err == nil:
		return video, nil
	case errors.Is(err, pgx.ErrNoRows):
		return video, apperrors.ErrVideoNotFound
	default:
		return video, fmt.Errorf("db error: %w", err)
	}
}

func rowToVideo(row pgx.CollectableRow) (models.Video, error) {
	var v models.Video
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.VideoFileURL, &v.ThumbnailURL, &v.Title, &v.Description, &v.Duration,
		&v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
		&v.Owner.ID, &v.Owner.Username, &v.Owner.FullName, &v.Owner.Avatar,
	)
	return v, err
}
