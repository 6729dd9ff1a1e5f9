package tty

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Concrete errors wrap one of these so callers can branch with
// errors.Is instead of inspecting messages.
var (
	ErrTransportIO     = errors.New("transport i/o failure")
	ErrNotRecording    = errors.New("recorder not started")
	ErrAlreadyReleased = errors.New("inner tty already released")
	ErrUnsupported     = errors.New("capability not supported")
	ErrTimeout         = errors.New("timeout")
)

// IOError reports an OS-level read, write, open or spawn failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports IOError as ErrTransportIO.
func (e *IOError) Is(target error) bool { return target == ErrTransportIO }

// UnsupportedError is returned when a capability is requested from a
// concrete type that does not provide it.
type UnsupportedError struct {
	Type       string
	Capability string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Type, e.Capability)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// TimeoutError is returned when an expected pattern does not show up in the
// output before the deadline. Actual holds everything accumulated so far.
// Command is set when the pattern was the completion marker of a command.
type TimeoutError struct {
	Command  string
	Expected string
	Actual   string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("timeout after %s waiting for command %q to complete", e.Timeout, e.Command)
	}
	return fmt.Sprintf("timeout after %s waiting for %q", e.Timeout, e.Expected)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Unsupported builds an UnsupportedError naming the dynamic type of v.
func Unsupported(v any, capability string) error {
	return &UnsupportedError{Type: fmt.Sprintf("%T", v), Capability: capability}
}
