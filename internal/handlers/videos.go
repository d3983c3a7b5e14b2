package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/service/video"
)

func handleListVideos(vs videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page")
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		query := r.URL.Query()
		var ownerID uuid.UUID
		if raw := query.Get("userId"); raw != "" {
			if ownerID, err = uuid.Parse(raw); err != nil {
				renderError(w, r, l, apperrors.BadRequest("Invalid userId"))
				return
			}
		}

		result, err := vs.ListVideos(r.Context(), video.ListVideosParams{
			Page:     page,
			Limit:    limit,
			Query:    query.Get("query"),
			SortBy:   query.Get("sortBy"),
			SortType: query.Get("sortType"),
			UserID:   ownerID,
			ViewerID: userctx.UserID(r.Context()),
		})
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, result, "Get All videos Successfully")
	})
}

func handlePublishVideo(vs videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form, err := readUploads(w, r)
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		defer form.Close()

		videoFile, err := form.file("videoFile")
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		thumbnail, err := form.file("thumbnail")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		created, err := vs.PublishVideo(r.Context(), userctx.UserID(r.Context()), video.PublishVideoParams{
			Title:       form.value("title"),
			Description: form.value("description"),
			VideoFile:   videoFile,
			Thumbnail:   thumbnail,
		})
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSONWithStatus(w, created, "Video published successfully", http.StatusCreated)
	})
}

func handleGetVideo(vs videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, err := pathUUID(r, "videoId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		found, err := vs.GetVideo(r.Context(), videoID, userctx.UserID(r.Context()))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, found, "Video found Successfully")
	})
}

func handleUpdateVideo(vs videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, err := pathUUID(r, "videoId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		form, err := readUploads(w, r)
		if err != nil {
			renderError(w, r, l, err)
			return
		}
		defer form.Close()

		thumbnail, err := form.file("thumbnail")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		updated, err := vs.UpdateVideo(r.Context(), videoID, userctx.UserID(r.Context()), video.UpdateVideoParams{
			Title:       form.value("title"),
			Description: form.value("description"),
			Thumbnail:   thumbnail,
		})
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, updated, "Video details updated")
	})
}

func handleDeleteVideo(vs videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, err := pathUUID(r, "videoId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		if err := vs.DeleteVideo(r.Context(), videoID, userctx.UserID(r.Context())); err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, struct{}{}, "Video Deleted")
	})
}

func handleTogglePublish(vs videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, err := pathUUID(r, "videoId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		toggled, err := vs.TogglePublishStatus(r.Context(), videoID, userctx.UserID(r.Context()))
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, toggled, "Video Publish status modified")
	})
}
