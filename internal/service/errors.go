// Package service implements the blog's use cases on top of the
// repositories.  Every exported operation returns either nil or an error
// that is, or wraps, *Error; anything else is an internal failure.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.  Each kind maps to exactly
// one HTTP status in the handler layer.
type Kind uint8

const (
	KindInternal Kind = iota
	KindBadCredentials
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindBadCredentials:
		return "bad_credentials"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation_failed"
	}
	return "internal"
}

// Error is a classified failure.  Message is safe to show to clients;
// Err is the underlying cause, kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrUserNotFound is wrapped into Unauthenticated when a valid token
// names a user that no longer exists.
var ErrUserNotFound = errors.New("user not found")

func badCredentials() error {
	return &Error{Kind: KindBadCredentials, Message: "invalid credentials"}
}

func unauthenticated(cause error) error {
	return &Error{Kind: KindUnauthenticated, Message: "unauthenticated", Err: cause}
}

func forbidden() error {
	return &Error{Kind: KindForbidden, Message: "forbidden"}
}

func notFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func conflict(msg string, cause error) error {
	return &Error{Kind: KindConflict, Message: msg, Err: cause}
}

func invalid(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}
