// Package respond writes JSON responses and maps service errors onto HTTP
// status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/stencil-be/internal/apperr"
	"github.com/rs/zerolog/log"
)

// Error codes returned in the "error" field of failure bodies.
const (
	CodeConflict           = "conflict"
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// ErrorBody is the JSON shape of every failure response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageBody is the JSON shape of simple confirmations.
type MessageBody struct {
	Message string `json:"message"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Message writes a {"message": text} confirmation.
func Message(w http.ResponseWriter, status int, text string) {
	JSON(w, status, MessageBody{Message: text})
}

// Fail writes an error body with an explicit status and code.
func Fail(w http.ResponseWriter, status int, code, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	JSON(w, status, ErrorBody{Error: code, Message: message})
}

// Status maps an error onto its HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusBadRequest, CodeConflict
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, apperr.ErrAuthentication):
		return http.StatusUnauthorized, CodeInvalidCredentials
	case errors.Is(err, apperr.ErrInvalidToken):
		return http.StatusUnauthorized, CodeInvalidToken
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Error writes the response for err. Unclassified errors are logged and
// reported with a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	message := apperr.Message(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		message = "Internal server error"
	}
	Fail(w, status, code, message)
}
