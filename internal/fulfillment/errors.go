package fulfillment

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkFailure marks a lane whose task returned an error.
	ErrWorkFailure = errors.New("work failure")
	// ErrInvalidCursor marks a Progress record whose cursor is out of range or
	// whose phases before the cursor are not settled.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrUnknownKind marks an unrecognized pipeline kind.
	ErrUnknownKind = errors.New("unknown pipeline kind")
)

// WorkFailure describes the lane task that halted a drive. It matches both
// ErrWorkFailure and the underlying task error under errors.Is.
type WorkFailure struct {
	Phase     int
	PhaseName string
	Lane      int
	Err       error
}

func (f *WorkFailure) Error() string {
	if f == nil {
		return ErrWorkFailure.Error()
	}
	return fmt.Sprintf("%s: phase %d (%s) lane %d: %v", ErrWorkFailure, f.Phase, f.PhaseName, f.Lane, f.Err)
}

func (f *WorkFailure) Unwrap() []error {
	if f == nil {
		return nil
	}
	if f.Err == nil {
		return []error{ErrWorkFailure}
	}
	return []error{ErrWorkFailure, f.Err}
}
