package install

import "errors"

var (
	// ErrLockMissing is returned by a locked sync without lock.json.
	ErrLockMissing = errors.New("lockfile is missing")
	// ErrLockSchema is returned when lock.json has an unknown schema.
	ErrLockSchema = errors.New("lockfile schema mismatch")
	// ErrLockEntry is returned when lock.json has no revision for an extension.
	ErrLockEntry = errors.New("lockfile missing entry")
	// ErrUnknownPlugin is returned when an update names an undeclared extension.
	ErrUnknownPlugin = errors.New("plugin not found")
	// ErrRevWithoutNames is returned when --rev is given without names.
	ErrRevWithoutNames = errors.New("--rev requires plugin names")
	// ErrNotInstalled is returned when a checkout is missing.
	ErrNotInstalled = errors.New("missing repo")
)
