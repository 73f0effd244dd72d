package server

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to write response")
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrUnsupported):
		return http.StatusNotFound, "unsupported"
	case apperrors.IsAuthError(err),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrNotOwner):
		return http.StatusForbidden, "forbidden"
	case apperrors.IsPolicyViolation(err):
		return http.StatusConflict, "policy_violation"
	case errors.Is(err, apperrors.ErrInvalidField),
		errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperrors.ErrCampaignNotFound),
		errors.Is(err, apperrors.ErrIntentNotFound),
		errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrPaymentTimeout):
		return http.StatusGatewayTimeout, "payment_timeout"
	case apperrors.IsRepositoryError(err):
		return http.StatusBadGateway, "repository_unavailable"
	case errors.Is(err, apperrors.ErrAtCapacity):
		return http.StatusServiceUnavailable, "at_capacity"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func decodeJSON(r *http.Request, into any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return errors.Wrapf(apperrors.ErrInvalidField, "request body: %v", err)
	}
	return nil
}
