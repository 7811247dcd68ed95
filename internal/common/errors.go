package common

import (
	"errors"
	"net/http"
)

// Error codes shared across handlers and services.
const (
	CodeAuthError       = "AUTH_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NewAuthError wraps an upstream authentication failure.
func NewAuthError(message string, err error) *AppError {
	return NewAppError(CodeAuthError, message, http.StatusBadGateway, err)
}

// NewValidationError reports a request that cannot be priced as submitted.
func NewValidationError(message string, details any) *AppError {
	return &AppError{Code: CodeValidationError, Message: message, HTTPStatus: http.StatusUnprocessableEntity, Details: details}
}

// NewUpstreamError wraps a non-auth failure from a backing system.
func NewUpstreamError(message string, err error) *AppError {
	return NewAppError(CodeUpstreamError, message, http.StatusBadGateway, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// AsAppError extracts an AppError when present.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
