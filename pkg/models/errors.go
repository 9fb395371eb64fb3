package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	// Non-fatal: callers skip the affected match and move on.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates the persistence layer could not be
	// reached. Callers treat this as "no data" and log.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrLiveUpdatesDisabled is returned by the live client once it has
	// given up reconnecting for the rest of the session.
	ErrLiveUpdatesDisabled = errors.New("live updates disabled")
)

// ValidationError describes a malformed client command. The connection
// stays open; the error is answered with a scoped error event.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// ConnectionError describes a transport-level failure on the client side.
// It drives the reconnect/backoff state machine.
type ConnectionError struct {
	Attempt int
	Cause   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection attempt %d failed: %v", e.Attempt, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NotFoundf wraps ErrNotFound with context
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// StoreErrorf wraps ErrStoreUnavailable with context
func StoreErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrStoreUnavailable)...)
}
