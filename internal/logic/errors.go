package logic

import (
	"errors"
	"fmt"
)

// Kind is a stable error tag surfaced to API callers
type Kind string

const (
	KindAuth                   Kind = "auth_error"
	KindConfig                 Kind = "config_error"
	KindValidation             Kind = "validation_error"
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindAlreadyInProgress      Kind = "already_in_progress"
	KindGenerationTimeout      Kind = "generation_timeout"
	KindUpstreamPartialFailure Kind = "upstream_partial_failure"
	KindInternal               Kind = "internal_error"
)

// Error carries a Kind and a caller-safe message. Err holds the underlying
// cause, which is logged but never written to a response.
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

// Is matches any *Error of the same Kind, so callers can use the sentinels below
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyVerified   = &Error{Kind: KindConflict}
	ErrAlreadyInProgress = &Error{Kind: KindAlreadyInProgress}
	ErrGenerationTimeout = &Error{Kind: KindGenerationTimeout}
	ErrStoreNotBound     = &Error{Kind: KindConfig}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Internal wraps an unexpected failure
func Internal(msg string, err error) *Error {
	return newError(KindInternal, msg, err)
}

// KindOf reports the Kind of err, defaulting to KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
