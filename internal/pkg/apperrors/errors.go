package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Code identifies an error class across REST and websocket surfaces.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodePermission         Code = "PERMISSION_DENIED"
	CodeConflict           Code = "CONFLICT"
	CodeCapacity           Code = "CAPACITY_EXCEEDED"
	CodeTimeout            Code = "TIMEOUT"
	CodeConnection         Code = "CONNECTION_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
)

// AppError carries a stable code alongside the wrapped cause so that
// transport layers can map it without string matching.
type AppError struct {
	Code    Code
	Message string
	Err     error

	// ConflictId is set for manual-strategy conflicts so the client can
	// reference the pending record in a resolution call.
	ConflictId uuid.UUID
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error class to a REST status code.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermission:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeCapacity:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusRequestTimeout
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewValidation(message string, err error) *AppError {
	return New(CodeValidation, message, err)
}

func NewNotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

func NewPermission(action string) *AppError {
	return New(CodePermission, fmt.Sprintf("not allowed to %s", action), nil)
}

func NewConflict(conflictId uuid.UUID, key string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    fmt.Sprintf("concurrent write to state key %q requires manual resolution", key),
		ConflictId: conflictId,
	}
}

func NewCapacity(limit int) *AppError {
	return New(CodeCapacity, fmt.Sprintf("session participant limit of %d reached", limit), nil)
}

func NewTimeout(operation string) *AppError {
	return New(CodeTimeout, fmt.Sprintf("%s timed out", operation), nil)
}

func NewServiceUnavailable(err error) *AppError {
	return New(CodeServiceUnavailable, "persistence unavailable", err)
}

// As extracts an AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}
