package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/postboard/internal/apperror"
	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// HandleCreate: POST /comment -> 201, or 404 if postId names no post.
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.NewComment
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.comments.CreateComment(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleList: GET /comment?postId=... (postId is required)
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("postId")
	if postID == "" {
		writeError(w, h.logger, apperror.ValidationFailed("postId", "postId is required"))
		return
	}

	comments, err := h.comments.ListByPost(r.Context(), postID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleDelete: DELETE /comment/{id}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	c, err := h.comments.DeleteComment(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeFound(w, c, "comment", id)
}
