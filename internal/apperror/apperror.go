// Package apperror defines the domain error kinds shared by the service and
// handler layers. Services return these; handlers map them onto HTTP responses
// (404 page, 403 page, form re-render, login redirect).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error             // actual error
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: every failing field of a form
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// Invalid bundles the field errors of a whole form into one validation error.
// The first field (in map order) is not significant; callers read Fields.
func Invalid(fields map[string]string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: fmt.Sprintf("%d field(s) failed validation", len(fields)),
		Fields:  fields,
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

// Unauthorized means the caller could not be identified: bad credentials,
// an expired or revoked session, or a disabled account.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// FieldErrors extracts the per-field messages carried by a validation error.
// It returns nil when err is not a validation error.
func FieldErrors(err error) map[string]string {
	var appErr *AppError
	if !errors.As(err, &appErr) || !errors.Is(err, ErrValidation) {
		return nil
	}
	if len(appErr.Fields) > 0 {
		return appErr.Fields
	}
	if appErr.Field != "" {
		return map[string]string{appErr.Field: appErr.Message}
	}
	return map[string]string{"": appErr.Message}
}
