package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

const fallbackMessage = "request failed"

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is makes 401 and 403 responses match ErrUnauthorized.
func (e *HTTPError) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// errorEnvelope covers both shapes the API uses for failures.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// newHTTPError picks the most specific message available:
// body "message", then body "error", then the status text.
func newHTTPError(status int, env errorEnvelope) *HTTPError {
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = fallbackMessage
	}
	return &HTTPError{Status: status, Message: msg}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
