package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// CodeNotFound is the exit code reported when git cannot be started.
const CodeNotFound = 127

// Result is the outcome of one git invocation.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// OK reports whether git exited with code 0.
func (r Result) OK() bool {
	return r.Code == 0
}

// Err returns nil for a successful result, otherwise an error wrapping
// ErrCommandFailed (or ErrGitUnavailable for code 127) with stderr.
func (r Result) Err() error {
	switch {
	case r.Code == 0:
		return nil
	case r.Code == CodeNotFound:
		return fmt.Errorf("%w: %s", ErrGitUnavailable, r.Stderr)
	case r.Stderr != "":
		return fmt.Errorf("%w (exit %d): %s", ErrCommandFailed, r.Code, r.Stderr)
	default:
		return fmt.Errorf("%w (exit %d)", ErrCommandFailed, r.Code)
	}
}

// Client runs git commands.
type Client struct {
	bin    string
	env    []string
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBinary sets the git executable.
func WithBinary(bin string) Option {
	return func(c *Client) {
		if bin != "" {
			c.bin = bin
		}
	}
}

// WithEnv appends environment entries for every invocation.
func WithEnv(env ...string) Option {
	return func(c *Client) { c.env = append(c.env, env...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{bin: "git", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clone clones repo into dest.
func (c *Client) Clone(ctx context.Context, repo, dest string) Result {
	return c.run(ctx, "", "clone", repo, dest)
}

// Fetch fetches and prunes the remote of the checkout at path.
func (c *Client) Fetch(ctx context.Context, path string) Result {
	return c.run(ctx, path, "fetch", "--prune")
}

// Checkout detaches the checkout at path at rev.
func (c *Client) Checkout(ctx context.Context, path, rev string) Result {
	return c.run(ctx, path, "checkout", "--detach", rev)
}

// Head resolves HEAD of the checkout at path.
func (c *Client) Head(ctx context.Context, path string) Result {
	return c.run(ctx, path, "rev-parse", "HEAD")
}

// StatusPorcelain reports the working tree of the checkout at path.
func (c *Client) StatusPorcelain(ctx context.Context, path string) Result {
	return c.run(ctx, path, "status", "--porcelain")
}

// Version reports the git version.
func (c *Client) Version(ctx context.Context) Result {
	return c.run(ctx, "", "--version")
}

// run executes git in dir.
func (c *Client) run(ctx context.Context, dir string, args ...string) Result {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = dir
	if len(c.env) > 0 {
		cmd.Env = append(cmd.Environ(), c.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		// Leading blanks are significant in porcelain output.
		Stdout: strings.TrimRight(stdout.String(), " \t\r\n"),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.Code = exitErr.ExitCode()
		if res.Code < 0 {
			res.Code = 1
		}
	case isStartFailure(err):
		res.Code = CodeNotFound
		res.Stderr = ErrGitUnavailable.Error()
	default:
		res.Code = 1
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}

	c.logger.Debug("git",
		zap.Strings("args", args),
		zap.String("dir", dir),
		zap.Int("code", res.Code),
	)
	return res
}

// isStartFailure reports whether the executable itself could not be found.
// A missing working directory is not a start failure.
func isStartFailure(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && pathErr.Op != "chdir" && errors.Is(err, fs.ErrNotExist)
}

// StatusCode represents the status of a file in the working tree.
type StatusCode int

const (
	// StatusUnmodified indicates the file is unchanged.
	StatusUnmodified StatusCode = iota
	// StatusModified indicates the file has been modified.
	StatusModified
	// StatusAdded indicates the file is newly added.
	StatusAdded
	// StatusDeleted indicates the file has been deleted.
	StatusDeleted
	// StatusRenamed indicates the file has been renamed.
	StatusRenamed
	// StatusCopied indicates the file has been copied.
	StatusCopied
	// StatusUntracked indicates the file is not tracked by git.
	StatusUntracked
	// StatusConflict indicates a merge conflict.
	StatusConflict
)

// String returns the string representation of a StatusCode.
func (s StatusCode) String() string {
	switch s {
	case StatusUnmodified:
		return "unmodified"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusCopied:
		return "copied"
	case StatusUntracked:
		return "untracked"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FileStatus is one entry of `git status --porcelain`.
type FileStatus struct {
	Path   string
	Status StatusCode
}

// ParsePorcelain parses porcelain v1 output. Renames report the new path.
func ParsePorcelain(out string) []FileStatus {
	var files []FileStatus
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		x, y, path := line[0], line[1], line[3:]
		if _, newPath, ok := strings.Cut(path, " -> "); ok {
			path = newPath
		}
		var code StatusCode
		switch {
		case x == '?' && y == '?':
			code = StatusUntracked
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			code = StatusConflict
		case x != ' ':
			code = charToStatus(x)
		default:
			code = charToStatus(y)
		}
		files = append(files, FileStatus{Path: path, Status: code})
	}
	return files
}

// charToStatus converts a porcelain status character to StatusCode.
func charToStatus(c byte) StatusCode {
	switch c {
	case 'M':
		return StatusModified
	case 'A':
		return StatusAdded
	case 'D':
		return StatusDeleted
	case 'R':
		return StatusRenamed
	case 'C':
		return StatusCopied
	case 'T': // Type change
		return StatusModified
	case 'U':
		return StatusConflict
	default:
		return StatusUnmodified
	}
}
