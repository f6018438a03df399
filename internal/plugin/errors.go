package plugin

import (
	"errors"
	"fmt"
)

// Normalization errors.
var (
	// ErrRepoRequired is returned when a declaration has no source locator.
	ErrRepoRequired = errors.New("repo is required")

	// ErrNameRequired is returned when no name can be derived for a declaration.
	ErrNameRequired = errors.New("plugin name is required")

	// ErrDuplicateName is returned when two declarations resolve to the same name.
	ErrDuplicateName = errors.New("duplicate plugin name")

	// ErrLocalRepo is returned when a local path is used where a remote locator is required.
	ErrLocalRepo = errors.New("local path repo is not allowed")

	// ErrNotURL is returned when a remote locator carries no scheme.
	ErrNotURL = errors.New("repo must be a URL")

	// ErrScheme is returned when a remote locator uses a scheme outside the allowlist.
	ErrScheme = errors.New("repo scheme is not allowed")

	// ErrOverrideConflict is returned when a local repo and dev.overridePath disagree.
	ErrOverrideConflict = errors.New("dev.overridePath conflicts with repo")

	// ErrOverrideRequired is returned when dev.enable is set without an override path.
	ErrOverrideRequired = errors.New("dev.overridePath is required")

	// ErrLegacyHooks is returned when the removed combined hook fields are present.
	ErrLegacyHooks = errors.New("hook_add/hook_source is removed")

	// ErrHookPath is returned when a hook path is not absolute after expansion.
	ErrHookPath = errors.New("must be an absolute path or ~")

	// ErrHomeShorthand is returned for ~user style paths.
	ErrHomeShorthand = errors.New("only ~ is supported for hook path")

	// ErrFieldType is returned when a declaration field has the wrong type.
	ErrFieldType = errors.New("invalid field type")

	// ErrLocalPath is returned when a local path cannot be resolved.
	ErrLocalPath = errors.New("failed to resolve path")
)

// FieldError reports a normalization failure for one field of one declaration.
type FieldError struct {
	Plugin string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	switch {
	case e.Plugin != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %v", e.Plugin, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	case e.Plugin != "":
		return fmt.Sprintf("%s: %v", e.Plugin, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(plugin, field string, err error) error {
	return &FieldError{Plugin: plugin, Field: field, Err: err}
}
