package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the API rejects the bearer token (401/403).
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNetworkUnavailable is returned when the API cannot be reached at all.
	ErrNetworkUnavailable = errors.New("backend: server unreachable")
)

// ServerError is any other non-2xx answer. Message carries the API's own
// explanation when it sent one.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

// UserMessage returns the text shown to the user for err: the API message
// when present, otherwise a generic sentence per error class.
func UserMessage(err error) string {
	var serverErr *ServerError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetworkUnavailable):
		return "The server is unreachable. Please try again later."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case errors.As(err, &serverErr) && serverErr.Message != "":
		return serverErr.Message
	case errors.As(err, &serverErr) && serverErr.Status == http.StatusNotFound:
		return "The requested record no longer exists."
	}
	return "An unexpected error occurred. Please try again."
}
