package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a mutating operation is attempted while a
	// turn is in flight. The caller may retry after the turn completes.
	ErrBusy = errors.New("a turn is already in flight")

	// ErrEmptyConversation is returned when an operation requires at least
	// one message in the log (e.g. setting a cache boundary).
	ErrEmptyConversation = errors.New("conversation is empty")
)

// AssemblyError reports a file handle that could not be resolved during
// request assembly. The session controller treats it as skip-with-warning,
// not a hard abort.
type AssemblyError struct {
	Handle string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("no uploaded file matches %q", e.Handle)
}

// TransportError wraps a failure of the model call itself: connection loss,
// a mid-stream error event, or user cancellation. Whenever it is returned,
// the turn has been rolled back and the message store is untouched.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "model call failed: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
