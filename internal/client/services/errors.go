package services

import (
	"errors"

	"github.com/dmitrijs2005/gophtodo/internal/client/client"
)

var (
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrEmptyCredentials = errors.New("username and password are required")
	ErrPasswordTooShort = errors.New("passwords must be at least 6 characters")
	ErrPasswordMismatch = errors.New("passwords should match")
	ErrTaskNotFound     = errors.New("task was not found")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrStaleSession     = errors.New("session changed while the request was in flight")
)

const unavailableNotice = "server unavailable, try again later"

// ValidationError is a client-side input check that failed before any
// request was made.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserMessage turns err into the one-line text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Err.Error()
	}
	var he *client.HTTPError
	if errors.As(err, &he) {
		return he.Message
	}
	if errors.Is(err, client.ErrUnavailable) {
		return unavailableNotice
	}
	return err.Error()
}
