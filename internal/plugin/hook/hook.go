// Package hook resolves hook references to executable code.
//
// Inline hooks are returned as is. A path reference names a hook module:
// a .lua file returning a table with string fields add and source, or a
// function hooks(ctx) returning such a table. Any other file contributes its
// whole contents for either kind. Modules are evaluated once per Resolver.
package hook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	glua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/lua"
)

// DefaultCacheSize bounds the number of modules kept per Resolver.
const DefaultCacheSize = 256

// Kind selects which hook a module provides.
type Kind string

// Hook kinds.
const (
	KindAdd    Kind = "add"
	KindSource Kind = "source"
)

// Resolution errors.
var (
	// ErrHookMissing indicates a module does not provide the requested hook.
	ErrHookMissing = errors.New("hook not provided")
	// ErrInvalidModule indicates a module did not evaluate to a hook table.
	ErrInvalidModule = errors.New("invalid hook module")
)

// Spec is the evaluated form of one hook module.
type Spec struct {
	Add    string
	Source string
}

func (s Spec) get(k Kind) string {
	if k == KindAdd {
		return s.Add
	}
	return s.Source
}

// Resolver evaluates hook modules and caches the results.
type Resolver struct {
	ctx    map[string]any
	cache  *lru.Cache[string, Spec]
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver. ctx is passed to hooks(ctx) functions.
func NewResolver(ctx map[string]any, size int, opts ...Option) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Spec](size)
	if err != nil {
		return nil, err
	}
	r := &Resolver{ctx: ctx, cache: cache, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the code for ref. A zero ref resolves to "".
func (r *Resolver) Resolve(ref plugin.HookRef, kind Kind) (string, error) {
	if ref.IsZero() {
		return "", nil
	}
	if ref.Path == "" {
		return ref.Inline, nil
	}
	spec, err := r.Load(ref.Path)
	if err != nil {
		return "", err
	}
	code := spec.get(kind)
	if code == "" {
		return "", fmt.Errorf("%w: %s does not provide %s", ErrHookMissing, ref.Path, kind)
	}
	return code, nil
}

// Load evaluates the module at path, or returns the cached result.
func (r *Resolver) Load(path string) (Spec, error) {
	if spec, ok := r.cache.Get(path); ok {
		return spec, nil
	}
	var (
		spec Spec
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".lua") {
		spec, err = r.evalModule(path)
	} else {
		spec, err = readFile(path)
	}
	if err != nil {
		return Spec{}, fmt.Errorf("hook %s: %w", path, err)
	}
	r.cache.Add(path, spec)
	r.logger.Debug("hook module resolved", zap.String("path", path))
	return spec, nil
}

// Paths returns the module paths resolved so far.
func (r *Resolver) Paths() []string {
	return r.cache.Keys()
}

func readFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	code := string(data)
	return Spec{Add: code, Source: code}, nil
}

func (r *Resolver) evalModule(path string) (Spec, error) {
	state, err := lua.NewState(lua.WithCapabilities(lua.CapabilityEnv))
	if err != nil {
		return Spec{}, err
	}
	defer state.Close()

	fn, err := state.LoadFile(path)
	if err != nil {
		return Spec{}, err
	}
	results, err := state.CallFunction(fn)
	if err != nil {
		return Spec{}, err
	}
	if len(results) == 0 {
		return Spec{}, fmt.Errorf("%w: module returned nothing", ErrInvalidModule)
	}
	tbl, ok := results[0].(*glua.LTable)
	if !ok {
		return Spec{}, fmt.Errorf("%w: module returned %s", ErrInvalidModule, results[0].Type())
	}

	bridge := lua.NewBridge(state.LuaState())
	if hooksFn, ok := bridge.GetTableFunc(tbl, "hooks"); ok {
		out, err := state.CallFunction(hooksFn, bridge.ToLuaValue(r.ctx))
		if err != nil {
			return Spec{}, err
		}
		if len(out) == 0 {
			return Spec{}, fmt.Errorf("%w: hooks() returned nothing", ErrInvalidModule)
		}
		if tbl, ok = out[0].(*glua.LTable); !ok {
			return Spec{}, fmt.Errorf("%w: hooks() returned %s", ErrInvalidModule, out[0].Type())
		}
	}

	var spec Spec
	for _, f := range []struct {
		key string
		dst *string
	}{{"add", &spec.Add}, {"source", &spec.Source}} {
		v := tbl.RawGetString(f.key)
		if v == glua.LNil {
			continue
		}
		s, ok := v.(glua.LString)
		if !ok {
			return Spec{}, fmt.Errorf("%w: field %s must be a string, got %s", ErrInvalidModule, f.key, v.Type())
		}
		*f.dst = string(s)
	}
	return spec, nil
}
