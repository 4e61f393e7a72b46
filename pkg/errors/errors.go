// Package errors defines the core error kinds from spec.md 7. Every
// core component returns one of these (wrapped with fmt.Errorf/%w
// where extra context is useful); the API layer maps them to HTTP
// status codes and the review policy is to surface them verbatim,
// never swallow them.
package errors

import "fmt"

type Kind string

const (
	KindValidation Kind = "validation"
	KindIntegrity  Kind = "integrity"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindIO         Kind = "io"
)

// Error is the concrete type behind every error the core returns.
// Reason is a short machine-readable code (e.g. "digest", "last-owner",
// "schema"); Detail is a human-readable elaboration.
type Error struct {
	Kind   Kind
	Reason string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the machine-readable reason code, e.g. for inclusion in
// an HTTP error body.
func (e *Error) Code() string {
	return e.Reason
}

func NewValidationError(reason, detail string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Detail: detail}
}

func NewIntegrityError(reason string) *Error {
	return &Error{Kind: KindIntegrity, Reason: reason}
}

func NewNotFoundError(kind, id string) *Error {
	return &Error{Kind: KindNotFound, Reason: kind, Detail: id}
}

func NewConflictError(detail string) *Error {
	return &Error{Kind: KindConflict, Reason: "conflict", Detail: detail}
}

func NewIOError(reason string, err error) *Error {
	return &Error{Kind: KindIO, Reason: reason, Err: err}
}

// IsKind reports whether err, or something it wraps, is an *Error of
// the given Kind.
func IsKind(err error, kind Kind) bool {
	e := AsError(err)
	return e != nil && e.Kind == kind
}

// AsError unwraps err looking for the first *Error in its chain.
func AsError(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
