package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrUnparsable: no phrase tier matched and the text is not canonical rule syntax.
	ErrUnparsable = errors.New("unparsable recurrence expression")
	// ErrInvalidRule: recognized syntax with semantically invalid content.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrConflictingBounds: both COUNT and UNTIL were given.
	ErrConflictingBounds = errors.New("conflicting recurrence bounds")
	// ErrConflictingAnchor: both BYMONTHDAY and a positional weekday were given.
	ErrConflictingAnchor = errors.New("conflicting monthly anchor")
)

// Error carries the offending input alongside one of the sentinel errors above.
type Error struct {
	Input  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v %q: %s", e.Err, e.Input, e.Reason)
	}
	return fmt.Sprintf("%v %q", e.Err, e.Input)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(sentinel error, input, format string, args ...any) *Error {
	return &Error{Input: input, Reason: fmt.Sprintf(format, args...), Err: sentinel}
}
