// Package state defines the compiled artifact and persists it.
//
// A compile produces one State. The Serializer publishes it as state.json
// (and optionally state.vim) in the data directory, replacing the previous
// artifact atomically. The runtime loader reads it back with Read.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/scan"
	"github.com/dshills/quiver/internal/plugin/trigger"
)

// Schema is the artifact schema version written by this build.
const Schema = 1

// Artifact file names inside the data directory.
const (
	StateFile     = "state.json"
	VimFile       = "state.vim"
	ImportMapFile = "import_map.json"
	LockFile      = "lock.json"
)

// Read errors.
var (
	// ErrNoState indicates no artifact has been compiled yet.
	ErrNoState = errors.New("state not compiled")
	// ErrSchemaMismatch indicates the artifact was written with another schema.
	ErrSchemaMismatch = errors.New("state schema mismatch")
	// ErrInvalidState indicates the artifact is not valid JSON.
	ErrInvalidState = errors.New("invalid state file")
)

// Meta describes the compile that produced a State.
type Meta struct {
	Version     string `json:"quiver_version"`
	ConfigPath  string `json:"config_path"`
	GeneratedAt string `json:"generated_at"`
}

// Hooks holds resolved hook code.
type Hooks struct {
	Add    string `json:"add"`
	Source string `json:"source"`
}

// Plugin is the runtime view of one extension.
type Plugin struct {
	Path        string         `json:"path"`
	Rtp         string         `json:"rtp"`
	Depends     []string       `json:"depends"`
	Lazy        plugin.Lazy    `json:"lazy"`
	Hooks       Hooks          `json:"hooks"`
	Sources     []string       `json:"sources"`
	BootSources []string       `json:"boot_sources"`
	FtSources   scan.FtSources `json:"ft_sources"`
	Dev         plugin.Dev     `json:"dev"`
}

// BaseDir returns the override path for development extensions, else Path.
func (p *Plugin) BaseDir() string {
	if p.Dev.Enable && p.Dev.OverridePath != "" {
		return p.Dev.OverridePath
	}
	return p.Path
}

// RuntimeDir returns the directory holding the extension's runtime files.
func (p *Plugin) RuntimeDir() string {
	base := p.BaseDir()
	if base == "" || p.Rtp == "" {
		return base
	}
	return plugin.JoinPath(base, p.Rtp)
}

// IsLazy reports whether the extension waits for a trigger.
func (p *Plugin) IsLazy() bool {
	return !p.Lazy.IsEmpty()
}

// State is the compiled artifact.
type State struct {
	Schema   int               `json:"schema"`
	Meta     Meta              `json:"meta"`
	Plugins  map[string]Plugin `json:"plugins"`
	Order    []string          `json:"order"`
	Triggers trigger.Table     `json:"triggers"`
}

// Path returns the artifact path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, StateFile)
}

// Read loads the artifact from dir.
func Read(dir string) (*State, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoState, Path(dir))
		}
		return nil, err
	}
	return Decode(data)
}

// Decode parses an artifact, checking the schema before decoding the body.
func Decode(data []byte) (*State, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidState
	}
	if schema := gjson.GetBytes(data, "schema"); schema.Int() != Schema {
		return nil, fmt.Errorf("%w: got %s, want %d", ErrSchemaMismatch, schema.Raw, Schema)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if st.Plugins == nil {
		st.Plugins = map[string]Plugin{}
	}
	return &st, nil
}
