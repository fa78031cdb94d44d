package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so the API layer can pick a status code
// without inspecting message text.
type Kind int

const (
	// KindNotFound means the entity does not exist.
	KindNotFound Kind = iota + 1
	// KindForbidden means the actor is authenticated but not allowed.
	KindForbidden
	// KindInvalidState means the entity exists and the actor is allowed, but
	// the requested transition violates a precondition.
	KindInvalidState
	// KindValidation means the input itself is malformed.
	KindValidation
	// KindInternal means a store or transaction failure; the atomic group
	// was rolled back.
	KindInternal
)

// Error is the only error type services return across their boundary.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a driver-level error so it never escapes the service
// boundary raw.
func Internal(cause error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// Wrap passes service errors through untouched and converts anything else
// (driver errors, context cancellations) into an InternalError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(err, message)
}

// KindOf extracts the kind from any error, defaulting to KindInternal for
// errors that did not come from a service.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for an error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
