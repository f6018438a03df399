package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

const tomlDoc = `
[[plugins]]
repo = "https://github.com/owner/core"
rev = "v1"

[[plugins]]
repo = "https://github.com/owner/ui"
depends = ["core"]

[plugins.lazy]
on_cmd = ["Build"]
`

const yamlDoc = `
plugins:
  - repo: https://github.com/owner/core
    rev: v1
  - repo: https://github.com/owner/ui
    depends: [core]
    lazy:
      on_cmd: [Build]
`

const jsonDoc = `{
  "plugins": [
    {"repo": "https://github.com/owner/core", "rev": "v1"},
    {"repo": "https://github.com/owner/ui", "depends": ["core"], "lazy": {"on_cmd": ["Build"]}}
  ]
}`

func TestForPathFormats(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/c/plugins.toml", tomlDoc)
	memfs.AddFile("/c/plugins.yaml", yamlDoc)
	memfs.AddFile("/c/plugins.yml", yamlDoc)
	memfs.AddFile("/c/plugins.json", jsonDoc)

	for _, path := range []string{"/c/plugins.toml", "/c/plugins.yaml", "/c/plugins.yml", "/c/plugins.json"} {
		t.Run(path, func(t *testing.T) {
			l, err := ForPath(memfs, path)
			if err != nil {
				t.Fatalf("ForPath() error = %v", err)
			}
			config, err := l.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			list, ok := config["plugins"].([]any)
			if !ok || len(list) != 2 {
				t.Fatalf("plugins = %#v", config["plugins"])
			}
			ui, ok := list[1].(map[string]any)
			if !ok {
				t.Fatalf("plugins[1] = %T", list[1])
			}
			if got, _ := GetByPath(ui, "lazy.on_cmd"); !equalAnyStrings(got, "Build") {
				t.Errorf("lazy.on_cmd = %#v", got)
			}
			if !equalAnyStrings(ui["depends"], "core") {
				t.Errorf("depends = %#v", ui["depends"])
			}
		})
	}
}

func equalAnyStrings(v any, want ...string) bool {
	list, ok := v.([]any)
	if !ok || len(list) != len(want) {
		return false
	}
	for i, item := range list {
		if s, ok := item.(string); !ok || s != want[i] {
			return false
		}
	}
	return true
}

func TestForPathUnsupported(t *testing.T) {
	if _, err := ForPath(NewMemFS(), "/c/init.ini"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ForPath(.ini) error = %v, want ErrUnsupportedFormat", err)
	}
	if Supported("init.lua") || !Supported("x.YAML") {
		t.Error("Supported() mismatch")
	}
}

func TestLoadNonExistent(t *testing.T) {
	for _, l := range []Loader{
		NewTOMLLoaderWithFS(NewMemFS(), "/missing.toml"),
		NewYAMLLoaderWithFS(NewMemFS(), "/missing.yaml"),
		NewJSONLoaderWithFS(NewMemFS(), "/missing.json"),
	} {
		config, err := l.Load()
		if err != nil || config != nil {
			t.Errorf("%T.Load() = %v, %v; want nil, nil", l, config, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		path     string
		content  string
		wantLine int
	}{
		{"/bad.toml", "a = 1\nb = = 2\n", 2},
		{"/bad.json", "{\n  \"a\": ,\n}", 2},
		{"/bad.yaml", "- a\n- b\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			memfs := NewMemFS()
			memfs.AddFile(tt.path, tt.content)
			l, err := ForPath(memfs, tt.path)
			if err != nil {
				t.Fatal(err)
			}
			_, err = l.Load()
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Load() error = %v (%T), want *ParseError", err, err)
			}
			if perr.Path != tt.path || perr.Line != tt.wantLine {
				t.Errorf("ParseError = %+v, want line %d", perr, tt.wantLine)
			}
		})
	}
}

func TestLoadFromReader(t *testing.T) {
	config, err := NewTOMLLoader("").LoadFromReader(strings.NewReader("dir = \"/data\"\n[log]\nlevel = \"debug\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := GetByPath(config, "log.level"); got != "debug" {
		t.Errorf("log.level = %v", got)
	}

	config, err = NewJSONLoader("").LoadFromReader(strings.NewReader(`{"jobs": 4, "ratio": 0.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if config["jobs"] != int64(4) || config["ratio"] != 0.5 {
		t.Errorf("numbers = %#v", config)
	}

	config, err = NewYAMLLoader("").LoadFromReader(strings.NewReader(""))
	if err != nil || len(config) != 0 {
		t.Errorf("empty yaml = %v, %v", config, err)
	}
}

func TestEnvLoader(t *testing.T) {
	environ := func() []string {
		return []string{
			"QUIVER_DIR=/data",
			"QUIVER_LOG_LEVEL=debug",
			"QUIVER_LOG_JSON=true",
			"QUIVER_JOBS=8",
			"QUIVER_CUSTOM_THING=x",
			"QUIVER_EMPTY=",
			"HOME=/home/u",
			"NOEQUALS",
		}
	}
	config, err := NewEnvLoaderWithEnviron(EnvPrefix, environ).Load()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"dir", "/data"},
		{"log.level", "debug"},
		{"log.json", true},
		{"jobs", int64(8)},
		{"custom_thing", "x"},
	}
	for _, tt := range tests {
		if got, ok := GetByPath(config, tt.path); !ok || got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.path, got, tt.want)
		}
	}
	if _, ok := config["empty"]; ok {
		t.Error("empty value loaded")
	}
	if _, ok := config["home"]; ok {
		t.Error("unprefixed variable loaded")
	}
}

func TestEnvLoaderAddMapping(t *testing.T) {
	l := NewEnvLoaderWithEnviron(EnvPrefix, func() []string { return []string{"QUIVER_X=1"} })
	l.AddMapping("QUIVER_X", "section.x")
	config, _ := l.Load()
	if got, _ := GetByPath(config, "section.x"); got != int64(1) {
		t.Errorf("section.x = %#v", got)
	}
}

func TestDotEnvLoader(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/w/.env", "# comment\nQUIVER_EMIT=json,vim\nexport QUIVER_SCRIPT_EXT=\".vim\"\nOTHER=1\n")

	config, err := NewDotEnvLoader(memfs, "/w/.env", EnvPrefix).Load()
	if err != nil {
		t.Fatal(err)
	}
	if config["emit"] != "json,vim" || config["script_ext"] != ".vim" {
		t.Errorf("config = %#v", config)
	}
	if _, ok := config["other"]; ok {
		t.Error("unprefixed variable loaded")
	}

	config, err = NewDotEnvLoader(memfs, "/w/missing.env", EnvPrefix).Load()
	if config != nil || err != nil {
		t.Errorf("missing .env = %v, %v", config, err)
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"dir": "/a",
		"log": map[string]any{"level": "info", "json": false},
	}
	src := map[string]any{
		"log":  map[string]any{"level": "debug"},
		"emit": "json",
	}
	got := DeepMerge(dst, src)
	if v, _ := GetByPath(got, "log.level"); v != "debug" {
		t.Errorf("log.level = %v", v)
	}
	if v, _ := GetByPath(got, "log.json"); v != false {
		t.Errorf("log.json = %v", v)
	}
	if got["dir"] != "/a" || got["emit"] != "json" {
		t.Errorf("merged = %#v", got)
	}
	if DeepMerge(nil, nil) == nil {
		t.Error("DeepMerge(nil, nil) = nil")
	}
}
