package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/melodex/melodex/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// Unauthorized sends a 401 Unauthorized error.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// Conflict sends a 409 Conflict error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

// InternalError sends a 500 Internal Server Error. The actual error is logged
// server-side; the client gets a generic message.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

// FromDomainError maps domain errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		BadRequest(w, "invalid request")
	case errors.Is(err, domain.ErrInvalidID):
		BadRequest(w, "invalid ID format")
	case errors.Is(err, domain.ErrBatchNotFound):
		NotFound(w, "batch")
	case errors.Is(err, domain.ErrDeadLetterNotFound):
		NotFound(w, "dead letter item")
	case errors.Is(err, domain.ErrDuplicateBatch):
		Conflict(w, "an identical batch is already queued")
	case errors.Is(err, domain.ErrUnauthorized):
		Unauthorized(w, "unauthorized")
	default:
		InternalError(w, r, err)
	}
}
