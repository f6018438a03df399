package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/quiver/internal/config/loader"
)

// Setting keys, as used in the settings file and the override map.
const (
	KeyDir       = "dir"
	KeyConfig    = "config"
	KeyLogLevel  = "log.level"
	KeyLogJSON   = "log.json"
	KeyScriptExt = "script_ext"
	KeyEmit      = "emit"
	KeyGit       = "git"
	KeyJobs      = "jobs"
)

// File names.
const (
	SettingsFile = "quiver.toml"
	DotEnvFile   = ".env"
	ConfigFile   = "init.lua"
)

// Emission targets.
const (
	EmitJSON = "json"
	EmitVim  = "vim"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Settings are the resolved tool settings.
type Settings struct {
	// Dir is the data directory holding artifacts and installed repos.
	Dir string
	// ConfigPath is the configuration module declaring extensions.
	ConfigPath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogJSON selects the JSON log encoder.
	LogJSON bool
	// ScriptExt is the script extension classified as source.
	ScriptExt string
	// Emit lists the artifact formats written on compile.
	Emit []string
	// Git is the version-control executable.
	Git string
	// Jobs bounds parallel repository operations; 0 means one per CPU.
	Jobs int
}

// EmitsVim reports whether the Vim-dialect artifact is requested.
func (s *Settings) EmitsVim() bool {
	return slices.Contains(s.Emit, EmitVim)
}

// Options control where settings are read from.
type Options struct {
	FS loader.FileSystem

	// Environ returns the process environment. Defaults to os.Environ.
	Environ func() []string

	// HomeDir overrides the user's home directory.
	HomeDir string

	// SettingsPath overrides the settings file location.
	SettingsPath string

	// DotEnvPath overrides the .env location. Defaults to ./.env.
	DotEnvPath string

	// Overrides is the highest layer, keyed like the settings file.
	Overrides map[string]any
}

// Load resolves settings from every layer.
func Load(opts Options) (*Settings, error) {
	if opts.FS == nil {
		opts.FS = loader.DefaultFS()
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	env := envMap(opts.Environ())
	home := opts.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
	}

	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		settingsPath = filepath.Join(configDir(home, env), SettingsFile)
	}
	dotEnvPath := opts.DotEnvPath
	if dotEnvPath == "" {
		dotEnvPath = DotEnvFile
	}

	merged := Defaults(home, env)
	layers := []loader.Loader{
		loader.NewTOMLLoaderWithFS(opts.FS, settingsPath),
		loader.NewDotEnvLoader(opts.FS, dotEnvPath, loader.EnvPrefix),
		loader.NewEnvLoaderWithEnviron(loader.EnvPrefix, opts.Environ),
	}
	for _, l := range layers {
		m, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, m)
	}
	for key, v := range opts.Overrides {
		merged = loader.DeepMerge(merged, nest(key, v))
	}

	s, err := decode(merged)
	if err != nil {
		return nil, err
	}
	s.Dir = expandHome(s.Dir, home)
	s.ConfigPath = expandHome(s.ConfigPath, home)
	return s, s.Validate()
}

// Defaults returns the built-in layer.
func Defaults(home string, env map[string]string) map[string]any {
	dataHome := env["XDG_DATA_HOME"]
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	return map[string]any{
		"dir":        filepath.Join(dataHome, "quiver"),
		"config":     filepath.Join(configDir(home, env), ConfigFile),
		"log":        map[string]any{"level": "info", "json": false},
		"script_ext": ".lua",
		"emit":       []any{EmitJSON},
		"git":        "git",
		"jobs":       int64(0),
	}
}

// Validate checks settings values.
func (s *Settings) Validate() error {
	if s.Dir == "" {
		return &SettingError{Key: KeyDir, Err: fmt.Errorf("%w: empty", ErrValidationFailed)}
	}
	if !slices.Contains(logLevels, s.LogLevel) {
		return &SettingError{Key: KeyLogLevel, Err: fmt.Errorf("%w: %q is not one of %s", ErrValidationFailed, s.LogLevel, strings.Join(logLevels, ", "))}
	}
	if !strings.HasPrefix(s.ScriptExt, ".") || len(s.ScriptExt) < 2 {
		return &SettingError{Key: KeyScriptExt, Err: fmt.Errorf("%w: %q must start with a dot", ErrValidationFailed, s.ScriptExt)}
	}
	for _, e := range s.Emit {
		if e != EmitJSON && e != EmitVim {
			return &SettingError{Key: KeyEmit, Err: fmt.Errorf("%w: unknown target %q", ErrValidationFailed, e)}
		}
	}
	if s.Jobs < 0 {
		return &SettingError{Key: KeyJobs, Err: fmt.Errorf("%w: negative", ErrValidationFailed)}
	}
	return nil
}

func decode(m map[string]any) (*Settings, error) {
	s := &Settings{}
	var err error
	if s.Dir, err = stringValue(m, KeyDir); err != nil {
		return nil, err
	}
	if s.ConfigPath, err = stringValue(m, KeyConfig); err != nil {
		return nil, err
	}
	if s.LogLevel, err = stringValue(m, KeyLogLevel); err != nil {
		return nil, err
	}
	s.LogLevel = strings.ToLower(s.LogLevel)
	if s.LogJSON, err = boolValue(m, KeyLogJSON); err != nil {
		return nil, err
	}
	if s.ScriptExt, err = stringValue(m, KeyScriptExt); err != nil {
		return nil, err
	}
	if s.Git, err = stringValue(m, KeyGit); err != nil {
		return nil, err
	}
	if s.Emit, err = listValue(m, KeyEmit); err != nil {
		return nil, err
	}
	if !slices.Contains(s.Emit, EmitJSON) {
		s.Emit = append([]string{EmitJSON}, s.Emit...)
	}
	if s.Jobs, err = intValue(m, KeyJobs); err != nil {
		return nil, err
	}
	return s, nil
}

func stringValue(m map[string]any, key string) (string, error) {
	v, ok := loader.GetByPath(m, key)
	if !ok {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case int64, bool:
		return fmt.Sprint(val), nil
	}
	return "", &SettingError{Key: key, Err: fmt.Errorf("%w: want string, got %T", ErrTypeMismatch, v)}
}

func boolValue(m map[string]any, key string) (bool, error) {
	v, ok := loader.GetByPath(m, key)
	if !ok {
		return false, nil
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case int64:
		if val == 0 || val == 1 {
			return val == 1, nil
		}
	}
	return false, &SettingError{Key: key, Err: fmt.Errorf("%w: want bool, got %v", ErrTypeMismatch, v)}
}

func intValue(m map[string]any, key string) (int, error) {
	v, ok := loader.GetByPath(m, key)
	if !ok {
		return 0, nil
	}
	switch val := v.(type) {
	case int64:
		return int(val), nil
	case int:
		return val, nil
	}
	return 0, &SettingError{Key: key, Err: fmt.Errorf("%w: want integer, got %T", ErrTypeMismatch, v)}
}

// listValue accepts a list of strings or a comma-separated string.
func listValue(m map[string]any, key string) ([]string, error) {
	v, ok := loader.GetByPath(m, key)
	if !ok {
		return nil, nil
	}
	var out []string
	switch val := v.(type) {
	case string:
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []string:
		out = append(out, val...)
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &SettingError{Key: key, Err: fmt.Errorf("%w: want list of strings, got %T item", ErrTypeMismatch, item)}
			}
			out = append(out, s)
		}
	default:
		return nil, &SettingError{Key: key, Err: fmt.Errorf("%w: want list, got %T", ErrTypeMismatch, v)}
	}
	return out, nil
}

func configDir(home string, env map[string]string) string {
	if dir := env["XDG_CONFIG_HOME"]; dir != "" {
		return filepath.Join(dir, "quiver")
	}
	return filepath.Join(home, ".config", "quiver")
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}

// nest turns a dotted key into nested maps.
func nest(key string, v any) map[string]any {
	parts := strings.Split(key, ".")
	out := map[string]any{parts[len(parts)-1]: v}
	for i := len(parts) - 2; i >= 0; i-- {
		out = map[string]any{parts[i]: out}
	}
	return out
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok {
			out[name] = value
		}
	}
	return out
}
