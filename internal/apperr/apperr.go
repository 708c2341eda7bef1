// Package apperr defines the error taxonomy shared by the store, service and
// HTTP layers. Errors carry a string code so they map cleanly onto HTTP
// statuses and JSON bodies.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// CodeInvalidInput indicates a required field is missing or malformed.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeNotFound indicates an aggregate or a nested element does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeIntegrity indicates stored data violates an invariant,
	// e.g. two siblings sharing one id.
	CodeIntegrity Code = "DATA_INTEGRITY"

	// CodeUnauthorized indicates missing or invalid credentials.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeInternal covers storage, decode and other unexpected failures.
	CodeInternal Code = "INTERNAL_ERROR"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error is a classified application error.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound returns a NOT_FOUND error with a formatted message.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Invalid returns an INVALID_INPUT error with a formatted message.
func Invalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Integrity returns a DATA_INTEGRITY error with a formatted message.
func Integrity(format string, args ...any) *Error {
	return &Error{Code: CodeIntegrity, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized returns an UNAUTHORIZED error wrapping cause.
func Unauthorized(message string, cause error) *Error {
	return &Error{Code: CodeUnauthorized, Message: message, Err: cause}
}

// CodeOf reports the code of the first *Error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err (or any error in its chain) is NOT_FOUND.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsInvalid reports whether err (or any error in its chain) is INVALID_INPUT.
func IsInvalid(err error) bool {
	return CodeOf(err) == CodeInvalidInput
}
