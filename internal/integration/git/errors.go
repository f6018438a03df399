package git

import "errors"

// Error types for git operations.
var (
	// ErrGitUnavailable indicates the git executable could not be started.
	ErrGitUnavailable = errors.New("git is not available")

	// ErrCommandFailed indicates git exited with a non-zero code.
	ErrCommandFailed = errors.New("git command failed")
)
