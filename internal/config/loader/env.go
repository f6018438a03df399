package loader

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment variable quiver reads.
const EnvPrefix = "QUIVER_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "QUIVER_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "QUIVER_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		environ: os.Environ,
	}
}

// NewEnvLoaderWithEnviron creates a loader reading variables from environ
// instead of the process environment.
func NewEnvLoaderWithEnviron(prefix string, environ func() []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = environ
	return l
}

// defaultEnvMapping returns the default environment variable mappings.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"QUIVER_DIR":        "dir",
		"QUIVER_CONFIG":     "config",
		"QUIVER_LOG_LEVEL":  "log.level",
		"QUIVER_LOG_JSON":   "log.json",
		"QUIVER_SCRIPT_EXT": "script_ext",
		"QUIVER_EMIT":       "emit",
		"QUIVER_GIT":        "git",
		"QUIVER_JOBS":       "jobs",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty values are treated as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	return l.FromPairs(pairs(l.environ())), nil
}

// FromPairs maps name=value pairs to a configuration map. Mapped names go to
// their configured path; other prefixed names become lower-case keys with
// the prefix removed.
func (l *EnvLoader) FromPairs(vars map[string]string) map[string]any {
	config := make(map[string]any)
	for name, value := range vars {
		if value == "" || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, ok := l.mapping[name]
		if !ok {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}
	return config
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts QUIVER_SOME_NAME to some_name.
func (l *EnvLoader) envToPath(env string) string {
	return strings.ToLower(strings.TrimPrefix(env, l.prefix))
}

// DotEnvLoader loads prefixed variables from a .env file.
type DotEnvLoader struct {
	fs   FileSystem
	path string
	env  *EnvLoader
}

// NewDotEnvLoader creates a loader for the .env file at path.
func NewDotEnvLoader(fs FileSystem, path, prefix string) *DotEnvLoader {
	if fs == nil {
		fs = DefaultFS()
	}
	return &DotEnvLoader{fs: fs, path: path, env: NewEnvLoader(prefix)}
}

// Load reads the .env file. A missing file yields nil, nil.
func (l *DotEnvLoader) Load() (map[string]any, error) {
	data, err := readFile(l.fs, l.path)
	if data == nil || err != nil {
		return nil, err
	}
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, &ParseError{Path: l.path, Message: err.Error(), Err: err}
	}
	return l.env.FromPairs(vars), nil
}

func pairs(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if ok {
			out[name] = value
		}
	}
	return out
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	lower := strings.ToLower(s)
	if lower == "true" || lower == "yes" || lower == "on" {
		return true
	}
	if lower == "false" || lower == "no" || lower == "off" {
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}
