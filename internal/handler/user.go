package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/service"
)

// UserHandler serves /user. Creation goes through AuthService so it gets
// the same duplicate-email check as registration.
type UserHandler struct {
	users  *service.UserService
	auth   *service.AuthService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, auth *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, auth: auth, logger: logger}
}

// userFilters are the query parameters GET /user accepts.
var userFilters = []string{"email", "userName"}

// HandleCreate: POST /user
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.NewUser
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.auth.CreateUser(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleList: GET /user?email=&userName=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), queryFilter(r, userFilters))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet: GET /user/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleUpdate: PUT /user/{id}. Only the fields present in the body change.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch model.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeFound(w, u, "user", id)
}

// HandleDelete: DELETE /user/{id}. Responds with the removed user.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	u, err := h.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeFound(w, u, "user", id)
}
