package dateparse

import (
	"errors"
	"fmt"
)

// ErrUnparsable is returned when neither the ISO nor the natural language
// stage understands the input.
var ErrUnparsable = errors.New("unparsable date/time")

// ParseError carries the offending input.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v %q: %s", ErrUnparsable, e.Input, e.Reason)
	}
	return fmt.Sprintf("%v %q", ErrUnparsable, e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrUnparsable
}
