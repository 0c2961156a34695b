package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrIO means the input could not be opened or read.
	ErrIO = errors.New("input unreadable")

	// ErrEmpty means the input was readable but produced no valid row.
	ErrEmpty = errors.New("no valid rows")
)

// Error is returned by the ingest functions. It matches ErrIO or ErrEmpty
// through errors.Is and unwraps to the underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
