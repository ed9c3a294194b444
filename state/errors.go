package state

import (
	"errors"
	"fmt"
)

var (
	// ErrUninitialized is returned when writing a key that has no record yet.
	// Read the key (or Init it) first so the write has a previous value.
	ErrUninitialized = errors.New("state: uninitialized key")

	// ErrTypeMismatch is returned when a key is accessed with a different
	// type parameter than the value it holds.
	ErrTypeMismatch = errors.New("state: type mismatch")

	// ErrClosed is returned by every operation after Store.Close.
	ErrClosed = errors.New("state: store closed")

	// ErrInitializerPanic wraps a non-error panic raised by a Lazy default.
	ErrInitializerPanic = errors.New("state: initializer panicked")
)

// KeyError ties an error to the key it happened on.
type KeyError struct {
	Key Key
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%v (key %s)", e.Err, e.Key)
}

func (e *KeyError) Unwrap() error { return e.Err }
