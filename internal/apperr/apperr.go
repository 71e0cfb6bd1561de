package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the classification surfaced to callers in the error envelope.
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindConfiguration Kind = "ConfigurationError"
	KindDatabase      Kind = "DatabaseError"
)

// Error is a classified error. Message is safe to show to callers for
// validation errors; configuration and database errors are surfaced with a
// generic message and logged with the full cause server-side.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func Database(cause error) *Error {
	return &Error{Kind: KindDatabase, Message: "query failed", cause: cause}
}

// Classify converts an arbitrary error into a classified one. Already
// classified errors pass through; context expiry counts as a database
// failure since it only arises on the query path.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindDatabase, Message: "query cancelled", cause: err}
	}
	return Database(err)
}

// KindOf reports the kind of a classified error, defaulting to database for
// anything unclassified so nothing internal leaks by accident.
func KindOf(err error) Kind {
	if c := Classify(err); c != nil {
		return c.Kind
	}
	return KindDatabase
}

// CallerMessage is what the error envelope carries. Validation messages are
// specific; everything else is generic.
func CallerMessage(err error) string {
	c := Classify(err)
	if c == nil {
		return ""
	}
	if c.Kind == KindValidation {
		return c.Message
	}
	return "internal error"
}
