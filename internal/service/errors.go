package service

import (
	"errors"
	"fmt"
)

// Kind classifies errors for the HTTP boundary. Handlers map kinds to
// status codes; engine-internal error text never crosses the boundary
// except wrapped under one of these.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindPrecondition
)

// Error is a kind-tagged error with an optional details payload that the
// boundary may serialize into the response envelope.
type Error struct {
	Kind    Kind
	Message string
	Details any
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

// E builds a kind-tagged error.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a kind-tagged error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and public message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches a details payload.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// DetailsOf extracts the details payload from an error chain, if any.
func DetailsOf(err error) any {
	var se *Error
	if errors.As(err, &se) {
		return se.Details
	}
	return nil
}
