package config

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/quiver/internal/config/loader"
)

// memFS serves files from a map and reports everything else as missing.
type memFS struct {
	loader.OSFS
	files map[string]string
}

func (m memFS) ReadFile(path string) ([]byte, error) {
	if data, ok := m.files[path]; ok {
		return []byte(data), nil
	}
	return nil, fs.ErrNotExist
}

func load(t *testing.T, files map[string]string, environ []string, overrides map[string]any) (*Settings, error) {
	t.Helper()
	return Load(Options{
		FS:         memFS{files: files},
		Environ:    func() []string { return environ },
		HomeDir:    "/home/u",
		DotEnvPath: "/work/.env",
		Overrides:  overrides,
	})
}

func TestLoadDefaults(t *testing.T) {
	s, err := load(t, nil, nil, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := &Settings{
		Dir:        "/home/u/.local/share/quiver",
		ConfigPath: "/home/u/.config/quiver/init.lua",
		LogLevel:   "info",
		ScriptExt:  ".lua",
		Emit:       []string{"json"},
		Git:        "git",
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if s.EmitsVim() {
		t.Error("EmitsVim() = true by default")
	}
}

func TestLoadXDG(t *testing.T) {
	s, err := load(t, nil, []string{"XDG_DATA_HOME=/xdg/data", "XDG_CONFIG_HOME=/xdg/config"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Dir != "/xdg/data/quiver" || s.ConfigPath != "/xdg/config/quiver/init.lua" {
		t.Errorf("Dir = %q, ConfigPath = %q", s.Dir, s.ConfigPath)
	}
}

func TestLoadLayerPrecedence(t *testing.T) {
	files := map[string]string{
		"/home/u/.config/quiver/quiver.toml": `
dir = "~/quiver-data"
script_ext = ".vim"
jobs = 2

[log]
level = "warn"
json = true
`,
		"/work/.env": "QUIVER_LOG_LEVEL=error\nQUIVER_EMIT=json,vim\n",
	}
	environ := []string{"QUIVER_LOG_LEVEL=debug", "QUIVER_JOBS=4"}

	s, err := load(t, files, environ, map[string]any{KeyDir: "/flag/dir"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := &Settings{
		Dir:        "/flag/dir",
		ConfigPath: "/home/u/.config/quiver/init.lua",
		LogLevel:   "debug",
		LogJSON:    true,
		ScriptExt:  ".vim",
		Emit:       []string{"json", "vim"},
		Git:        "git",
		Jobs:       4,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	s, err = load(t, files, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Dir != "/home/u/quiver-data" || s.LogLevel != "error" || s.Jobs != 2 {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadEmitAddsJSON(t *testing.T) {
	s, err := load(t, nil, []string{"QUIVER_EMIT=vim"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"json", "vim"}, s.Emit); diff != "" {
		t.Errorf("Emit mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		environ []string
		key     string
		want    error
	}{
		{"log level", nil, []string{"QUIVER_LOG_LEVEL=loud"}, KeyLogLevel, ErrValidationFailed},
		{"script ext", nil, []string{"QUIVER_SCRIPT_EXT=lua"}, KeyScriptExt, ErrValidationFailed},
		{"emit", nil, []string{"QUIVER_EMIT=json,xml"}, KeyEmit, ErrValidationFailed},
		{"jobs", nil, []string{"QUIVER_JOBS=many"}, KeyJobs, ErrTypeMismatch},
		{"log json", nil, []string{"QUIVER_LOG_JSON=7"}, KeyLogJSON, ErrTypeMismatch},
		{
			"dir type",
			map[string]string{"/home/u/.config/quiver/quiver.toml": "dir = [1]\n"},
			nil, KeyDir, ErrTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.files, tt.environ, nil)
			var serr *SettingError
			if !errors.As(err, &serr) || serr.Key != tt.key || !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %s %v", err, tt.key, tt.want)
			}
		})
	}
}

func TestLoadSettingsParseError(t *testing.T) {
	files := map[string]string{"/home/u/.config/quiver/quiver.toml": "dir = = 1\n"}
	_, err := load(t, files, nil, nil)
	var perr *loader.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Load() error = %v, want *loader.ParseError", err)
	}
}

func TestNest(t *testing.T) {
	got := nest("log.level", "debug")
	want := map[string]any{"log": map[string]any{"level": "debug"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("nest() mismatch (-want +got):\n%s", diff)
	}
}
