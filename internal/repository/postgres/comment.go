package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

type CommentRepo struct {
	DB DBTX
}

const commentColumns = `id, video_id, owner_id, content, created_at, updated_at`

const createComment = `-- name: CreateComment
INSERT INTO comments (id, video_id, owner_id, content)
VALUES ($1, $2, $3, $4)
RETURNING ` + commentColumns

func (r *CommentRepo) CreateComment(ctx context.Context, videoID uuid.UUID, ownerID uuid.UUID, content string) (models.Comment, error) {
	rows, _ := r.DB.Query(ctx, createComment, uuid.New(), videoID, ownerID, content)
	comment, err := pgx.CollectOneRow(rows, rowToComment)
	if err != nil {
		return comment, fmt.Errorf("db error: %w", err)
	}
	return comment, nil
}

const getComment = `-- name: GetComment
SELECT ` + commentColumns + `
FROM comments
WHERE id = $1
`

func (r *CommentRepo) GetComment(ctx context.Context, commentID uuid.UUID) (models.Comment, error) {
	rows, _ := r.DB.Query(ctx, getComment, commentID)
	return collectComment(rows)
}

const countComments = `-- name: CountComments
SELECT COUNT(*) FROM comments WHERE video_id = $1
`

const listComments = `-- name: ListComments
SELECT c.id, c.video_id, c.owner_id, c.content, c.created_at, c.updated_at,
	u.id, u.username, u.full_name, u.avatar_url
FROM comments c
JOIN users u ON u.id = c.owner_id
WHERE c.video_id = $1
ORDER BY c.created_at DESC, c.id DESC
LIMIT $2 OFFSET $3
`

func (r *CommentRepo) ListComments(ctx context.Context, videoID uuid.UUID, limit int, offset int) ([]models.Comment, int64, error) {
	var total int64
	err := r.DB.QueryRow(ctx, countComments, videoID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, listComments, videoID, limit, offset)
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Comment, error) {
		var (
			c  models.Comment
			by models.UserSummary
		)
		err := row.Scan(
			&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
			&by.ID, &by.Username, &by.FullName, &by.Avatar,
		)
		c.CreatedBy = &by
		return c, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return comments, total, nil
}

const updateComment = `-- name: UpdateComment
UPDATE comments
SET content = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + commentColumns

func (r *CommentRepo) UpdateComment(ctx context.Context, commentID uuid.UUID, content string) (models.Comment, error) {
	rows, _ := r.DB.Query(ctx, updateComment, commentID, content)
	return collectComment(rows)
}

const deleteComment = `-- name: DeleteComment
DELETE FROM comments WHERE id = $1
`

func (r *CommentRepo) DeleteComment(ctx context.Context, commentID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteComment, commentID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrCommentNotFound
	default:
		return nil
	}
}

func collectComment(rows pgx.Rows) (models.Comment, error) {
	comment, err := pgx.CollectOneRow(rows, rowToComment)

	switch {
	case err == nil:
		return comment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return comment, apperrors.ErrCommentNotFound
	default:
		return comment, fmt.Errorf("db error: %w", err)
	}
}

func rowToComment(row pgx.CollectableRow) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
