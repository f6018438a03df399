package runtime

import "errors"

// Runtime errors.
var (
	// ErrUnknownPlugin is returned when a name is not in the compiled state.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrCommandReentry is returned when a command stub is invoked while the
	// same command is still loading or re-dispatching.
	ErrCommandReentry = errors.New("command not found after load")

	// ErrInvalidCommandLine is returned when a command line cannot be parsed.
	ErrInvalidCommandLine = errors.New("invalid command line")
)

// LoadError reports a soft failure while loading one extension.
type LoadError struct {
	Plugin string
	Err    error
}

func (e *LoadError) Error() string {
	return "load " + e.Plugin + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
