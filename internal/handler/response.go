package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so that all
// responses share one shape. Errors always look like:
//
//	{"error": "not_found", "message": "post not found with id abc123"}
//
// plus "code" and "field" when the error carries them.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/postboard/internal/apperror"
)

// maxBodyBytes caps request bodies; every payload here is a few short strings.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Code    string `json:"code,omitempty"`  // Stable code for errors clients branch on
	Field   string `json:"field,omitempty"` // Offending input field, if any
}

// TokenResponse is the body of a successful register or login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
// Errors that are not AppErrors are logged through logger (slog.Default when
// nil) and answered with a generic 500.
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("creating comment: %w", apperror.NotFound(...)) still maps to 404.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrDuplicateEmail):
			status = http.StatusBadRequest
			errorType = "duplicate_email"
		case errors.Is(err, apperror.ErrInvalidCredentials):
			status = http.StatusUnauthorized
			errorType = "invalid_credentials"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Code:    appErr.Code,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error: never expose internal details (queries, hosts) to the client.
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads the request body into dst. A malformed body is a
// validation error, not a server error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// writeFound writes v, or a 404 for resource/id when v is nil. Update and
// delete report an absent record as nil rather than an error.
func writeFound[T any](w http.ResponseWriter, v *T, resource, id string) {
	if v == nil {
		writeError(w, nil, apperror.NotFound(resource, id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
