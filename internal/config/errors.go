package config

import (
	"errors"
	"fmt"
)

// Errors returned while resolving settings.
var (
	// ErrTypeMismatch indicates a setting has the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrValidationFailed indicates a setting has an unacceptable value.
	ErrValidationFailed = errors.New("validation failed")
)

// SettingError reports a problem with one setting.
type SettingError struct {
	Key string
	Err error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("setting %s: %v", e.Key, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}
