package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"campus-portal-service/internal/domain"
)

type errorPayload struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError writes the user-facing message for err with a matching status.
func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), errorPayload{Message: domain.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrCourseMismatch),
		errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyRecorded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrDisplayNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSubmissionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
