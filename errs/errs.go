// Package errs defines the control plane's typed error taxonomy. Every
// error that should be distinguishable at the HTTP boundary is an
// *AppError; callers construct one with the matching helper instead of
// fmt.Errorf so the REST adapter can map it to a status code without
// string-sniffing.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError. Each Kind maps 1:1 to an HTTP status.
type Kind string

const (
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	Validation          Kind = "Validation"
	InvalidCredentials  Kind = "InvalidCredentials"
	Unauthorized        Kind = "Unauthorized"
	Forbidden           Kind = "Forbidden"
	RuntimeErrorKind    Kind = "RuntimeError"
	ProxyErrorKind      Kind = "ProxyError"
	ProviderErrorKind   Kind = "ProviderError"
	Internal            Kind = "Internal"
	BadRequest          Kind = "BadRequest"
)

// AppError is the error type every usecase and adapter should return for
// any failure the REST adapter needs to render with a specific status.
type AppError struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, if any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New constructs an AppError of the given kind with a message.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap constructs an AppError of the given kind that wraps a lower-level
// cause (e.g. a sql.Error or an HTTP transport error).
func Wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: cause}
}

// HTTPStatus maps a Kind to the status code used at the REST boundary,
// per the fixed table in the error-handling design.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case InvalidCredentials:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case RuntimeErrorKind, ProxyErrorKind, ProviderErrorKind, Internal:
		return http.StatusInternalServerError
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// StatusFor returns the HTTP status for any error: the AppError's mapped
// status if err wraps one, otherwise 500.
func StatusFor(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind.HTTPStatus()
	}
	return http.StatusInternalServerError
}
