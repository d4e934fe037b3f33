package delivery

import (
	"errors"
	"fmt"
)

// ErrorKind classifies delivery failures so callers can branch on them
// without inspecting messages.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindAuthFailed ErrorKind = "auth_failed"
	KindProvider   ErrorKind = "provider_error"
	KindValidation ErrorKind = "validation_error"
)

// Error represents a failure reported by, or on the way to, the delivery provider.
type Error struct {
	Provider   string
	Kind       ErrorKind
	Op         string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := e.Provider
	if prefix == "" {
		prefix = "delivery"
	}
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s (%s): %s: %v", prefix, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", prefix, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a new Error.
func NewError(provider string, kind ErrorKind, message string) *Error {
	return &Error{
		Provider: provider,
		Kind:     kind,
		Message:  message,
	}
}

// WithOp records the operation that failed.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Kind sentinels. They match any *Error of the same kind under errors.Is.
var (
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAuthFailed = &Error{Kind: KindAuthFailed, Message: "authentication failed"}
	ErrProvider   = &Error{Kind: KindProvider, Message: "provider error"}
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
)

// KindOf returns the kind of err. Errors that did not come from this package
// are reported as provider errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindProvider
}

// MessageOf returns the human-readable message carried by err, without the
// provider/kind prefix.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}
