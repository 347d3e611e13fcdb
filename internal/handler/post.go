package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/repository"
	"github.com/sakif/postboard/internal/service"
)

type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

var postFilters = []string{"title", "content"}

// HandleCreate: POST /posts -> 201 with the stored post.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.NewPost
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.posts.CreatePost(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleList: GET /posts?title=&content=
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context(), queryFilter(r, postFilters))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet: GET /posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate: PUT /posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch model.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.posts.UpdatePost(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeFound(w, p, "post", id)
}

// HandleDelete: DELETE /posts/{id}. Comments on the post are left alone.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.posts.DeletePost(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeFound(w, p, "post", id)
}

// queryFilter turns the allowed, non-empty query parameters into an
// equality filter. Anything else in the query string is ignored.
func queryFilter(r *http.Request, allowed []string) repository.Filter {
	q := r.URL.Query()
	filter := repository.Filter{}
	for _, key := range allowed {
		if v := q.Get(key); v != "" {
			filter[key] = v
		}
	}
	return filter
}
