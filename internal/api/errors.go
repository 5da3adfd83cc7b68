package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"jch-go/internal/history"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondErrorWithCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, APIError{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: requestID(r.Context()),
	})
}

// respondError maps history errors to status codes.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, history.ErrInvalidInput):
		respondErrorWithCode(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, history.ErrPermissionDenied):
		respondErrorWithCode(w, r, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, history.ErrNotFound), errors.Is(err, history.ErrRestoreFailed):
		respondErrorWithCode(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		respondErrorWithCode(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}
