package track

import (
	"errors"
	"fmt"
)

// ErrUnsupportedValue is returned when a value that is not a container is
// handed to an operation that needs one.
var ErrUnsupportedValue = errors.New("track: value is not a trackable container")

// AlreadyTrackedError is returned when a tracking view is requested over a
// value that already is one, or when a container is bound to a second view.
type AlreadyTrackedError struct {
	Value any
}

func (e *AlreadyTrackedError) Error() string {
	return fmt.Sprintf("track: %T is already tracked", e.Value)
}
