package shared

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-checkable category of a domain error.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindInvalidState ErrorKind = "INVALID_STATE"
	KindValidation   ErrorKind = "VALIDATION_FAILED"
	KindConflict     ErrorKind = "CONCURRENCY_CONFLICT"
	KindDependency   ErrorKind = "DEPENDENCY_FAILURE"
	KindInternal     ErrorKind = "INTERNAL"
)

// Error is a typed domain error carrying a kind, an optional specific code and
// a human readable message.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on kind, and on code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// NewError builds a coded error.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WrapError attaches kind and message to a cause.
func WrapError(err error, kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithMessage returns a copy of err with the message replaced.
func WithMessage(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Validation is shorthand for a VALIDATION_FAILED error without a specific code.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Sentinels for errors.Is checks by kind.
var (
	ErrUnauthorized = NewError(KindUnauthorized, "", "actor lacks the required role")
	ErrNotFound     = NewError(KindNotFound, "", "not found")
	ErrInvalidState = NewError(KindInvalidState, "", "operation not permitted in current state")
	ErrValidation   = NewError(KindValidation, "", "validation failed")
	ErrConflict     = NewError(KindConflict, "", "concurrent modification")
	ErrDependency   = NewError(KindDependency, "", "dependency failure")
)

// AsError normalises any error into an *Error; unknown errors become INTERNAL.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(err, KindInternal, "", "internal error")
}

// KindOf reports the kind of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
