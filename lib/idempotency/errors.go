package idempotency

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies coordinator errors.
type Kind int

const (
	KindTokenConflict    Kind = iota + 1 // token reused with a different payload
	KindLockUnavailable                  // another request with the token is still running
	KindStoreUnavailable                 // store unreachable, nothing was executed
	KindOperationFailed                  // the operation failed, the failure is recorded
	KindInvalidToken                     // token rejected before touching the store
)

func (k Kind) String() string {
	switch k {
	case KindTokenConflict:
		return "token_conflict"
	case KindLockUnavailable:
		return "lock_unavailable"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindOperationFailed:
		return "operation_failed"
	case KindInvalidToken:
		return "invalid_token"
	default:
		return "unknown"
	}
}

// Error is returned by the coordinator. Use errors.Is with the Err* sentinels to check the kind.
type Error struct {
	Kind  Kind
	Token string
	Msg   string
	Err   error
}

// Sentinels for errors.Is
var (
	ErrTokenConflict    = &Error{Kind: KindTokenConflict}
	ErrLockUnavailable  = &Error{Kind: KindLockUnavailable}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrOperationFailed  = &Error{Kind: KindOperationFailed}
	ErrInvalidToken     = &Error{Kind: KindInvalidToken}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Token != "" {
		return fmt.Sprintf("idempotency token %q: %s", e.Token, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so errors.Is(err, ErrTokenConflict) works for any token.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a coordinator error, 0 for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCode maps an error to the HTTP status a caller should see.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindTokenConflict:
		return http.StatusConflict
	case KindLockUnavailable:
		return http.StatusTooEarly
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidToken:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// noCacheError marks an operation error that must not be recorded.
type noCacheError struct{ err error }

func (e noCacheError) Error() string { return e.err.Error() }
func (e noCacheError) Unwrap() error { return e.err }

// NoCache wraps an operation error so the coordinator returns it without recording it.
// A retry with the same token then executes again. Use it for failures that happened before
// any side effect, e.g. a database that could not be reached.
func NoCache(err error) error {
	if err == nil {
		return nil
	}
	return noCacheError{err: err}
}

func isNoCache(err error) bool {
	var nc noCacheError
	return errors.As(err, &nc)
}
