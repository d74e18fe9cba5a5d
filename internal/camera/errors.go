package camera

import (
	"errors"
	"fmt"
)

var (
	ErrNoCommandID    = errors.New("camera response did not include a command id")
	ErrCommandFailed  = errors.New("command failed")
	ErrCommandTimeout = errors.New("command timed out")

	ErrCaptureFailed  = errors.New("picture capture failed")
	ErrCaptureTimeout = errors.New("picture capture timed out")
)

// TransportError is any failure to get a 2xx answer out of the camera.
type TransportError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: request failed with status code %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CommandError describes an asynchronous command that did not complete.
type CommandError struct {
	Command  string
	ID       string
	Attempts int
	Code     string
	Message  string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s (id %q, %d polls): %v", e.Command, e.ID, e.Attempts, e.Err)
	if e.Code != "" || e.Message != "" {
		msg += fmt.Sprintf(" [%s: %s]", e.Code, e.Message)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }
