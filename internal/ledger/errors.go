package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so callers can map them to responses
type Kind int

const (
	// KindInternal is an infrastructure failure (database unreachable, etc.)
	KindInternal Kind = iota
	// KindInvalidInput is a malformed or missing required field
	KindInvalidInput
	// KindNotFound means the referenced record or predecessor does not exist
	KindNotFound
	// KindForbidden means the caller lacks rights for the mutation
	KindForbidden
	// KindConflict is a repeated or concurrent operation that lost
	KindConflict
	// KindCorruptState is an invariant violation found while reading. It
	// points at a prior bug rather than a user error.
	KindCorruptState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindCorruptState:
		return "corrupt_state"
	default:
		return "internal"
	}
}

// Error is returned by every ledger operation
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrConflict) works
// for any conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInternal     = &Error{Kind: KindInternal}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrCorruptState = &Error{Kind: KindCorruptState}
)

// KindOf returns the kind of err, or KindInternal when err is not a ledger
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsCorruptState reports whether err signals a stored invariant violation
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...interface{}) *Error {
	return newError(KindInvalidInput, format, args...)
}

func notFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func corruptState(format string, args ...interface{}) *Error {
	return newError(KindCorruptState, format, args...)
}

func internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
