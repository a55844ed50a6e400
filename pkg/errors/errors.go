// Package errors provides the application-wide error taxonomy: a single
// AppError type carrying a stable code so callers can branch on failure kind
// instead of matching error strings.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an AppError for programmatic handling.
type Code string

const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeUnavailable  Code = "UNAVAILABLE"
	CodeTimeout      Code = "TIMEOUT"
)

// AppError wraps an underlying cause with a stable code and message.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewInvalidInput(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewInternal(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

func NewUnavailable(message string) *AppError {
	return &AppError{Code: CodeUnavailable, Message: message}
}

func NewTimeout(message string) *AppError {
	return &AppError{Code: CodeTimeout, Message: message}
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
