package follower

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of rejected commands. Every rejected command returns a *CommandError wrapping one of
// these, so callers can test with errors.Is.
var (
	// ErrNotReady means the follower or its inputs are not initialized or not live. The caller may
	// retry later.
	ErrNotReady = errors.New("not ready")
	// ErrAlreadyStarted means the command would restart something already in progress.
	ErrAlreadyStarted = errors.New("already started")
	// ErrInvalidTransition means the command is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid transition")
)

// CommandError is returned when a command is rejected. The state is left unchanged.
type CommandError struct {
	Command Command
	Kind    error
	State   State
	Reason  string
}

func newCommandError(cmd Command, kind error, state State, format string, args ...interface{}) error {
	return &CommandError{Command: cmd, Kind: kind, State: state, Reason: fmt.Sprintf(format, args...)}
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s rejected (%v): %s", e.Command, e.Kind, e.Reason)
}

// Unwrap returns the kind of rejection.
func (e *CommandError) Unwrap() error {
	return e.Kind
}
