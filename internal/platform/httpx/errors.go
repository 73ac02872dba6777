// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var serverErr *backend.ServerError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, backend.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", backend.UserMessage(err))
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrSubmitInFlight):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, backend.ErrNetworkUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", backend.UserMessage(err))
	case errors.As(err, &serverErr):
		Problem(w, http.StatusBadGateway, "Bad Gateway", backend.UserMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
