package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrCancelled matches every *CancelledError under errors.Is.
	ErrCancelled = errors.New("dispatch: operation cancelled")
	// ErrCallstackTooDeep is returned when a nested call exceeds the configured
	// maximum callstack depth.
	ErrCallstackTooDeep = errors.New("dispatch: callstack too deep")
	// ErrRoutineExited is reported when a routine's goroutine exits without
	// returning, for example through runtime.Goexit.
	ErrRoutineExited = errors.New("dispatch: routine exited without returning")
)

// CancelledError is the result of an asynchronous operation that was torn
// down. Cause is the context cause when cancellation came from the context
// given to MutateAsync, nil otherwise.
type CancelledError struct {
	Operation uuid.UUID
	Cause     error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dispatch: operation %s cancelled: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("dispatch: operation %s cancelled", e.Operation)
}

// Unwrap returns the cause.
func (e *CancelledError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrCancelled.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// PanicError carries a value recovered from a panicking routine.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dispatch: routine panicked: %v", e.Value)
}
