package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches NotFoundError via errors.Is.
	ErrNotFound = errors.New("placed object not found")
	// ErrDuplicateID matches DuplicateIDError via errors.Is.
	ErrDuplicateID = errors.New("placed object id already present")
	// ErrRemoteUnavailable matches RemoteUnavailableError via errors.Is.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrSerialization matches SerializationError via errors.Is.
	ErrSerialization = errors.New("serialization failed")
)

// NotFoundError is returned when update or remove targets an absent id.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("placed object %s not found", e.ID)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateIDError is returned when add is called with an id already held.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("placed object %s already exists", e.ID)
}

// Is reports whether target is ErrDuplicateID.
func (e DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// SerializationError wraps a malformed local or remote payload.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSerialization.
func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// RemoteUnavailableError wraps a transport or account-state failure talking to
// a remote record store.
type RemoteUnavailableError struct {
	Driver string
	Op     string
	Err    error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Driver == "" {
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s (%s): %v", e.Op, e.Driver, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRemoteUnavailable.
func (e *RemoteUnavailableError) Is(target error) bool { return target == ErrRemoteUnavailable }

// Unavailable wraps err as a RemoteUnavailableError unless it already is one
// or is nil.
func Unavailable(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	var ru *RemoteUnavailableError
	if errors.As(err, &ru) {
		return err
	}
	return &RemoteUnavailableError{Driver: driver, Op: op, Err: err}
}
