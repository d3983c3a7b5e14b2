package handlers

import (
	"net/http"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/logger"
)

type commentRequest struct {
	Content string `json:"content" validate:"required,notblank"`
}

func handleListComments(cs commentService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, err := pathUUID(r, "videoId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}
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

		comments, err := cs.ListComments(r.Context(), videoID, userctx.UserID(r.Context()), page, limit)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, comments, "Comments Fetched")
	})
}

func handleAddComment(cs commentService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, err := pathUUID(r, "videoId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		data, err := render.BindAndValidate[commentRequest](w, r)
		if err != nil {
			return
		}

		comment, err := cs.AddComment(r.Context(), videoID, userctx.UserID(r.Context()), data.Content)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSONWithStatus(w, comment, "Comment Saved", http.StatusCreated)
	})
}

func handleUpdateComment(cs commentService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commentID, err := pathUUID(r, "commentId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		data, err := render.BindAndValidate[commentRequest](w, r)
		if err != nil {
			return
		}

		comment, err := cs.UpdateComment(r.Context(), commentID, userctx.UserID(r.Context()), data.Content)
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, comment, "Comment updated")
	})
}

func handleDeleteComment(cs commentService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commentID, err := pathUUID(r, "commentId")
		if err != nil {
			renderError(w, r, l, err)
			return
		}

		if err := cs.DeleteComment(r.Context(), commentID, userctx.UserID(r.Context())); err != nil {
			renderError(w, r, l, err)
			return
		}

		render.JSON(w, struct{}{}, "Comment Deleted")
	})
}
