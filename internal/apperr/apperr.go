// Package apperr defines the error taxonomy shared by all core components.
// Repository and collaborator failures are translated into one of these kinds
// at component boundaries; storage-specific error types never cross them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	// KindNotFound means the entity is absent or not owned by the caller.
	// The two cases are deliberately indistinguishable so the existence of
	// other owners' entities is never revealed.
	KindNotFound Kind = iota + 1

	// KindInvalid means a request value is outside its domain.
	KindInvalid

	// KindConflict means a cursor mismatch or a disallowed concurrent mutation.
	KindConflict

	// KindTransient means a timeout or contention failure that is safe to retry.
	KindTransient

	// KindInternal means an unexpected failure.
	KindInternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil cause yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is classified NotFound.
func IsNotFound(err error) bool { return is(err, KindNotFound) }

// IsInvalid reports whether err is classified Invalid.
func IsInvalid(err error) bool { return is(err, KindInvalid) }

// IsConflict reports whether err is classified Conflict.
func IsConflict(err error) bool { return is(err, KindConflict) }

// IsTransient reports whether err is classified Transient.
func IsTransient(err error) bool { return is(err, KindTransient) }

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
