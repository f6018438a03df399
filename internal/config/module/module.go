// Package module evaluates the configuration module that declares
// extensions.
//
// A .lua module defines configure(ctx), either as a global or as a field of
// the table the chunk returns, and configure returns a list of declaration
// tables. TOML, YAML and JSON documents hold the same list under a top-level
// "plugins" key.
package module

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	glua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/config/loader"
	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/lua"
	"github.com/dshills/quiver/internal/state"
)

//go:embed quiver.lua
var helperSource string

// Evaluation errors.
var (
	ErrEntryPointMissing = errors.New("configure function is missing in config")
	ErrNotList           = errors.New("configure must return a list of plugins")
	ErrHelperLocator     = errors.New("invalid helper locator")
)

// Context is passed to configure(ctx).
type Context struct {
	Dir        string
	ConfigPath string
	DataDir    string
	Getenv     func(string) string
}

func (c Context) table(b *lua.Bridge) glua.LValue {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return b.ToLuaValue(map[string]any{
		"dir":         c.Dir,
		"config_path": c.ConfigPath,
		"data_dir":    c.DataDir,
		"os":          goruntime.GOOS,
		"env": glua.LGFunction(func(L *glua.LState) int {
			L.Push(glua.LString(getenv(L.CheckString(1))))
			return 1
		}),
	})
}

// Loader evaluates configuration modules.
type Loader struct {
	fs      loader.FileSystem
	locator string
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithFS sets the file system used for declarative documents.
func WithFS(fs loader.FileSystem) Option {
	return func(ld *Loader) { ld.fs = fs }
}

// WithHelperLocator sets where require("quiver") is served from: a
// builtin: locator or a Lua file path, as recorded in the import map.
func WithHelperLocator(locator string) Option {
	return func(ld *Loader) { ld.locator = locator }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		fs:      loader.DefaultFS(),
		locator: state.HelperLocator("", func(string) string { return "" }),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load evaluates the module at path and decodes its declarations.
func (l *Loader) Load(path string, ctx Context) ([]plugin.Declaration, error) {
	if ctx.ConfigPath == "" {
		ctx.ConfigPath = path
	}
	if ctx.Dir == "" {
		ctx.Dir = filepath.Dir(path)
	}

	var (
		items []any
		err   error
	)
	switch {
	case strings.EqualFold(filepath.Ext(path), ".lua"):
		items, err = l.loadLua(path, ctx)
	case loader.Supported(path):
		items, err = l.loadDocument(path)
	default:
		return nil, fmt.Errorf("%w: %s", loader.ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	decls, err := plugin.DecodeDeclarations(items)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("configuration evaluated", zap.String("path", path), zap.Int("plugins", len(decls)))
	return decls, nil
}

func (l *Loader) loadDocument(path string) ([]any, error) {
	fl, err := loader.ForPath(l.fs, path)
	if err != nil {
		return nil, err
	}
	doc, err := fl.Load()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("config %s: %w", path, os.ErrNotExist)
	}
	raw, ok := doc["plugins"]
	if !ok {
		return []any{}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: plugins is %T", ErrNotList, raw)
	}
	return items, nil
}

func (l *Loader) loadLua(path string, ctx Context) ([]any, error) {
	helper, err := l.helper()
	if err != nil {
		return nil, err
	}
	st, err := lua.NewState(
		lua.WithCapabilities(lua.CapabilityModules, lua.CapabilityEnv),
		lua.WithPreload(state.HelperModule, helper),
	)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.AddModulePath(ctx.Dir); err != nil {
		return nil, err
	}
	chunk, err := st.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	results, err := st.CallFunction(chunk)
	if err != nil {
		return nil, fmt.Errorf("run config %s: %w", path, err)
	}

	bridge := lua.NewBridge(st.LuaState())
	configure, ok := st.GetGlobal("configure").(*glua.LFunction)
	if !ok && len(results) > 0 {
		if tbl, isTable := results[0].(*glua.LTable); isTable {
			configure, ok = bridge.GetTableFunc(tbl, "configure")
		}
	}
	if !ok {
		return nil, ErrEntryPointMissing
	}

	out, err := st.CallFunction(configure, ctx.table(bridge))
	if err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: got nothing", ErrNotList)
	}
	items, ok := bridge.ToGoValue(out[0]).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotList, out[0].Type())
	}
	return items, nil
}

// helper returns the module loader for require("quiver").
func (l *Loader) helper() (glua.LGFunction, error) {
	src := helperSource
	name := "quiver.lua"
	if !strings.HasPrefix(l.locator, state.BuiltinPrefix) {
		data, err := os.ReadFile(l.locator)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHelperLocator, err)
		}
		src, name = string(data), l.locator
	}
	version := ""
	if _, v, ok := strings.Cut(l.locator, "@"); ok && strings.HasPrefix(l.locator, state.BuiltinPrefix) {
		version = v
	}

	return func(L *glua.LState) int {
		fn, err := L.Load(strings.NewReader(src), name)
		if err != nil {
			L.RaiseError("load %s: %v", name, err)
			return 0
		}
		L.Push(fn)
		L.Call(0, 1)
		if tbl, ok := L.Get(-1).(*glua.LTable); ok && version != "" {
			tbl.RawSetString("version", glua.LString(version))
		}
		return 1
	}, nil
}
