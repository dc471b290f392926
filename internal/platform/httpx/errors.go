// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError pins an explicit status code and public message to an error.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus wraps err with a status code and a public message.
func WithStatus(status int, message string, err error) error {
	return &StatusError{Status: status, Message: message, Err: err}
}

// StatusFor maps err to an HTTP status code.
func StatusFor(err error) int {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Status
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error": message}. Internal failures never
// leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Message == "" {
			message = "Internal server error"
		}
	}
	Error(w, status, message)
}
