package models

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID `json:"id"`
	VideoID   uuid.UUID `json:"video"`
	OwnerID   uuid.UUID `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Filled on listings only
	CreatedBy *UserSummary `json:"createdBy,omitempty"`
}

func (c Comment) OwnerUserID() uuid.UUID {
	return c.OwnerID
}

type CommentPage struct {
	Comments      []Comment `json:"comments"`
	TotalComments int64     `json:"totalComments"`
	Page          int       `json:"page"`
	Limit         int       `json:"limit"`
}
