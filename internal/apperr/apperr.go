// Package apperr defines the error taxonomy shared by stores, services and
// the HTTP layer. Every failure that a caller can act on carries a Kind.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindConcurrentModification Kind = "concurrent_modification"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindInvalidOperation       Kind = "invalid_operation"
	KindInvalidState           Kind = "invalid_state"
	KindValidation             Kind = "validation"
	KindFrozen                 Kind = "frozen"
	KindLimitExceeded          Kind = "limit_exceeded"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrInvalidOperation       = &Error{Kind: KindInvalidOperation}
	ErrInvalidState           = &Error{Kind: KindInvalidState}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrFrozen                 = &Error{Kind: KindFrozen}
	ErrLimitExceeded          = &Error{Kind: KindLimitExceeded}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the human-readable message of the first *Error in err's chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
