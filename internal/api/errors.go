package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransportError means no response was received: the network is down,
// the request timed out, or it was cancelled.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// ServerError is a response with a non-2xx status, or a 2xx response
// whose body could not be decoded.
type ServerError struct {
	Status  int
	Message string
	Err     error
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}

func (e *ServerError) Unwrap() error { return e.Err }

// ValidationError is a local validation failure caught before any
// network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Kind discriminates the outcome of an API operation.
type Kind int

const (
	KindOK Kind = iota
	KindTransport
	KindServer
	KindValidation
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var te *TransportError
	var se *ServerError
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &se):
		return KindServer
	case errors.As(err, &te):
		return KindTransport
	default:
		return KindUnknown
	}
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by a ServerError, or 0.
func StatusOf(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Retryable reports whether repeating the operation could succeed:
// transport failures, 429 and 5xx responses.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport:
		var te *TransportError
		errors.As(err, &te)
		return !errors.Is(te.Err, context.Canceled)
	case KindServer:
		status := StatusOf(err)
		return status == http.StatusTooManyRequests || status >= 500
	default:
		return false
	}
}

// Messages shown when the server did not supply one.
const (
	GenericErrorMessage   = "Something went wrong. Please try again."
	TransportErrorMessage = "Unable to reach the server. Please check your connection and try again."
)

// Message returns a user-facing message for err: the server- or
// validation-supplied text when present, a generic fallback otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *ServerError
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &se):
		if se.Message != "" {
			return se.Message
		}
		return GenericErrorMessage
	case KindOf(err) == KindTransport:
		return TransportErrorMessage
	default:
		return GenericErrorMessage
	}
}
