package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONData wraps the payload in the canonical {"data": ...} envelope.
func JSONData(w http.ResponseWriter, status int, v any) {
	JSON(w, status, map[string]any{"data": v})
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteError translates service errors into the canonical error envelope.
// AppError values keep their code and status; bare sentinels map to their
// conventional statuses; anything else becomes a 500.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, ErrInvalidInput):
		JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrUnauthorized):
		JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	case errors.Is(err, ErrForbidden):
		JSONError(w, http.StatusForbidden, "FORBIDDEN", "access denied", nil)
	case errors.Is(err, ErrConflict):
		JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
