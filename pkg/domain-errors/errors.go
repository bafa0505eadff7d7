// Package domainerrors defines the error taxonomy shared by services,
// stores, and transport layers. Errors carry a stable machine-readable
// code plus a human-readable message; handlers translate codes into HTTP
// statuses without inspecting message text.
//
// Conventionally imported as dErrors:
//
//	dErrors "provenance/pkg/domain-errors"
//
// Usage:
//
//	return dErrors.New(dErrors.CodeNotFound, "run not found")
//	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load run")
//	if dErrors.HasCode(err, dErrors.CodeConflict) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain error. Codes are part of the API
// contract: they appear verbatim in JSON error envelopes.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// DomainError is the concrete error type carrying a Code. Callers should
// not type-assert on it directly; use HasCode/Is so wrapped chains keep
// working.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a DomainError with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Newf creates a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a code and message while keeping
// the original error in the chain. A nil err returns nil so call sites can
// wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Code: code, Message: message, Err: err}
}

// Is supports errors.Is comparison between domain errors: two match when
// code and message are equal. Tests assert on exact errors this way without
// needing shared sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *DomainError
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.Err
		domainErr = nil
	}
	return false
}

// Is reports whether err carries the given code. Alias of HasCode kept for
// readability in assertions.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost DomainError in the chain, or
// CodeInternal when err carries no code. Transport layers use this to pick
// an HTTP status.
func CodeOf(err error) Code {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost DomainError, or an empty
// string when err carries no code. Internal error messages are never safe
// to expose; callers must check the code first.
func MessageOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}
