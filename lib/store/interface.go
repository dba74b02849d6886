package store

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/idemkv/lib/db"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a shared key–value store.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
// Errors returned by implementations are of type *Error.
//
// Every method that may block takes a context; implementations must give up
// with an error of code RetCUnavailable once the context is done.
type IStore interface {
	// Set inserts or updates a key–value pair without expiration.
	Set(ctx context.Context, key string, value []byte) (err error)
	// SetE inserts or updates a key–value pair that expires after ttl.
	// A zero ttl means no expiration.
	SetE(ctx context.Context, key string, value []byte, ttl time.Duration) (err error)
	// SetEIfUnset atomically inserts a key–value pair only if no live value exists for the key.
	// stored reports whether this call wrote the value. If the key already exists the old value
	// and its ttl are kept.
	SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (stored bool, err error)
	// Delete deletes a key–value pair. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a live value was found.
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)
	// Has returns whether a live value exists for the key.
	Has(ctx context.Context, key string) (loaded bool, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(ctx context.Context) (info db.DatabaseInfo, err error)
	// Close releases the resources held by the store. The store must not be used afterward.
	Close() (err error)
}

// ICompareAndDelete is implemented by stores that can delete a key atomically when it still
// holds an expected value.
type ICompareAndDelete interface {
	// DeleteIfEquals deletes key if its live value equals value. A missing key counts as
	// deleted; deleted is false only when the key holds another value, which is kept.
	DeleteIfEquals(ctx context.Context, key string, value []byte) (deleted bool, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Unavailable wraps err into an *Error with code RetCUnavailable.
func Unavailable(op string, err error) *Error {
	return NewError(RetCUnavailable, fmt.Sprintf("%s: %v", op, err))
}

// IsUnavailable reports whether err means the store could not be reached or did not answer in time.
// Context cancellation and deadline errors count as unavailable.
func IsUnavailable(err error) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code == RetCUnavailable
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCUnavailable                         // 4: Store unreachable or timed out.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}
