// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinel errors below.
// Handlers never inspect messages; they match the sentinel with errors.Is and
// pick the HTTP status from that. Anything that does not wrap a sentinel is
// treated as an internal failure.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err     error    // sentinel
	Message string   // Human-readable error message, safe to show to clients
	Field   string   // Optional: field causing the error
	Fields  []string // Optional: every field that failed validation
	cause   error    // underlying failure for Internal errors, never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Cause returns the storage or transport failure behind an Internal error.
func (e *AppError) Cause() error {
	return e.cause
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// MissingFields reports every required field that was absent or blank.
// The message lists them in the order given so clients can show one error.
func MissingFields(fields ...string) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message: fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", ")),
		Fields:  fields,
	}
	if len(fields) == 1 {
		e.Field = fields[0]
		e.Message = fmt.Sprintf("%s is required", fields[0])
	}
	return e
}

// InvalidID rejects an identifier that is not a positive integer.
func InvalidID(resource, raw string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: fmt.Sprintf("invalid %s id %q", resource, raw),
		Field:   "id",
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means no usable identity was presented. Maps to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Internal hides err behind a generic message. op names the failed
// operation and is kept only for logs.
func Internal(op string, err error) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: "an internal error occurred",
		cause:   fmt.Errorf("%s: %w", op, err),
	}
}

// IsDomain reports whether err already carries a client-facing category.
// Storage errors that are not domain errors become Internal at the service.
func IsDomain(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return !errors.Is(appErr, ErrInternal)
}
