package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"courtbook/internal/interval"
	"courtbook/internal/models"
	"courtbook/internal/slots"
)

var (
	errBadRequest  = errors.New("bad request")
	errRateLimited = errors.New("rate limit exceeded")
)

// envelope is the single response shape of every API endpoint.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Reason    models.Reason     `json:"reason,omitempty"`
	Conflicts []models.Conflict `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status, body := describeError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body})
}

// describeError maps engine errors onto HTTP statuses and stable codes.
func describeError(err error) (int, *apiError) {
	var (
		conflict *models.ConflictError
		policy   *models.PolicyViolationError
	)
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, &apiError{Code: "conflict", Message: models.ErrConflict.Error(), Conflicts: conflict.Conflicts}
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, &apiError{Code: "conflict", Message: models.ErrConflict.Error()}
	case errors.As(err, &policy):
		return http.StatusUnprocessableEntity, &apiError{Code: "policy_violation", Message: policy.Reason.Message(), Reason: policy.Reason}
	case errors.Is(err, models.ErrResourceInactive):
		return http.StatusUnprocessableEntity, &apiError{Code: "resource_inactive", Message: err.Error()}
	case errors.Is(err, slots.ErrNoOperatingHours):
		return http.StatusUnprocessableEntity, &apiError{Code: "no_operating_hours", Message: err.Error()}
	case errors.Is(err, interval.ErrInvalidInterval),
		errors.Is(err, interval.ErrInvalidClock),
		errors.Is(err, interval.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidRenter),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, &apiError{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, &apiError{Code: "invalid_transition", Message: err.Error()}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, &apiError{Code: "not_found", Message: "not found"}
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, &apiError{Code: "rate_limited", Message: err.Error()}
	case errors.Is(err, models.ErrStorage):
		return http.StatusServiceUnavailable, &apiError{Code: "storage_unavailable", Message: "storage temporarily unavailable, retry later"}
	}
	return http.StatusInternalServerError, &apiError{Code: "internal", Message: "internal error"}
}
