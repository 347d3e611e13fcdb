package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/postboard/internal/apperror"
	"github.com/sakif/postboard/internal/auth"
	"github.com/sakif/postboard/internal/model"
	"github.com/sakif/postboard/internal/service"
)

// AuthHandler serves registration and login, which answer with a bearer
// token and need none, and /auth/me, which needs one.
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, users *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, users: users, logger: logger}
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "...", "password": "...", "userName": "..."}
// RESPONSE: 200 {"access_token": "..."}; 400 with code "0001" if the email is taken
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in model.NewUser
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: res.AccessToken})
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 {"access_token": "..."}; 401 with code "0002" on bad credentials
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: res.AccessToken})
}

// HandleMe returns the account the bearer token was issued to, looked up by
// the token's email claim.
//
// HTTP: GET /auth/me
// Auth: Required (RequireAuth puts the identity in the context)
// RESPONSE: 200 User; 404 if the account has since been deleted
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("missing identity"))
		return
	}

	u, err := h.users.GetByEmail(r.Context(), id.Email)
	if err != nil {
		h.logger.Warn("HandleMe: account lookup failed",
			slog.String("userId", id.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
