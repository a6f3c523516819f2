package summary

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindMethodNotAllowed
	KindConfiguration
	KindExternalService
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindConfiguration:
		return "configuration_error"
	case KindExternalService:
		return "external_service_error"
	case KindNotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a pipeline failure classified for the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && (e.Kind == KindExternalService || e.Kind == KindInternal) {
		return "Internal server error: " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

var (
	ErrMethodNotAllowed = newError(KindMethodNotAllowed, "Method not allowed", nil)
	ErrInvalidJSON      = newError(KindBadRequest, "Invalid JSON in request body", nil)
	ErrMissingPatient   = newError(KindBadRequest, "Missing patientData", nil)
	ErrAPIKeyMissing    = newError(KindConfiguration, "API key not configured", nil)
	ErrNoGenerator      = newError(KindConfiguration, "Gemini API package not available", nil)
)

// Classify converts any error into an *Error; unknown errors are internal.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindInternal, "Internal server error", err)
}
