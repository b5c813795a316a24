package httpadapter

import (
	"net/http"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation), domain.IsKind(err, domain.ErrInvalidWeight):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound), domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyCompleted), domain.IsKind(err, domain.ErrDuplicateID):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrDecoder):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string      `json:"error"`
	Step      domain.Step `json:"step,omitempty"`
	Retryable bool        `json:"retryable"`
}

func writeError(w http.ResponseWriter, err error) {
	step, _ := domain.StepOf(err)
	writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{
		Error:     err.Error(),
		Step:      step,
		Retryable: domain.Retryable(err),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Retryable: true})
}
