package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Video struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"-"`
	VideoFileURL string          `json:"videoFile"`
	ThumbnailURL string          `json:"thumbnail"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Duration     decimal.Decimal `json:"duration"`
	Views        int64           `json:"views"`
	IsPublished  bool            `json:"isPublished"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`

	Owner UserSummary `json:"owner"`
}

func (v Video) OwnerUserID() uuid.UUID {
	return v.OwnerID
}

type VideoPage struct {
	Videos      []Video `json:"videos"`
	TotalVideos int64   `json:"totalVideos"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
}
