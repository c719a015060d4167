package http

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status and wire code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithError attaches the cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// ErrorRule maps every error matching Target (errors.Is) to Code and
// Status. The matched error's text becomes the message.
type ErrorRule struct {
	Target error
	Code   string
	Status int
}

// ErrorMap translates domain errors to AppErrors, first match wins.
type ErrorMap []ErrorRule

// Map returns an AppError for err. An AppError already in the chain is
// returned as is; unmatched errors become a generic 500 that keeps err
// as the cause but does not expose its text.
func (m ErrorMap) Map(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, r := range m {
		if errors.Is(err, r.Target) {
			return NewAppError(r.Code, "", err.Error(), r.Status).WithError(err)
		}
	}
	return InternalError("Something went wrong").WithError(err)
}
