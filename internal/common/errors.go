package common

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound       Code = "not_found"
	CodeValidation     Code = "validation"
	CodeForbidden      Code = "forbidden"
	CodeConflict       Code = "conflict"
	CodeUnauthorized   Code = "unauthorized"
	CodeRateLimited    Code = "rate_limited"
	CodeUpstream       Code = "upstream"
	CodePartialFailure Code = "partial_failure"
	CodeInternal       Code = "internal"
)

// Error is the single error type crossing service boundaries. Handlers map
// Code to an HTTP status and never expose Err to clients.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
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

func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func NewValidationError(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

func Is(err error, code Code) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Code == code
	}
	return false
}

func CodeOf(err error) Code {
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return CodeInternal
}
