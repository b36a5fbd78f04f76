package api

import (
	"encoding/json"
	"net/http"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
)

// APIError is the structured JSON body returned for every non-2xx response.
type APIError struct {
	Code    string                 `json:"error_code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// statusFor maps an apperrors.Kind to its HTTP status, per the error
// handling design's propagation policy: 400 for validation, 401 for missing
// auth, 403 for ownership, 404 for not-found, 409 for conflict, 429 for rate
// limit (handled upstream by ratelimit.Middleware, never reaches here), 503
// for engine unavailable, 500 otherwise.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindAuthRequired:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindSessionNotFound, apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindCommandNotAllowed, apperrors.KindPathInvalid, apperrors.KindSizeLimitExceeded:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindEngineUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError maps err's Kind to an HTTP status and writes the
// corresponding structured error response.
func writeAPIError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	writeJSON(w, statusFor(kind), APIError{
		Code:    kind.String(),
		Message: err.Error(),
	})
}

// errCodeInvalidRequest is used for request-shape problems caught before
// the core is even called (bad JSON, missing required fields).
const errCodeInvalidRequest = "INVALID_REQUEST"

// writeValidationError writes a 400 with a free-form validation message,
// for request-shape problems caught before the core is even called.
func writeValidationError(w http.ResponseWriter, message string, details map[string]interface{}) {
	writeJSON(w, http.StatusBadRequest, APIError{
		Code:    errCodeInvalidRequest,
		Message: message,
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
