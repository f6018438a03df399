package lua

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds one outermost Lua execution.
const DefaultTimeout = 30 * time.Second

// State wraps a sandboxed gopher-lua interpreter.
type State struct {
	L *lua.LState

	timeout time.Duration
	caps    []Capability
	preload map[string]lua.LGFunction

	sandbox *Sandbox
	depth   int
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithTimeout sets the execution timeout. Zero disables it.
func WithTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// WithCapabilities grants sandbox capabilities at creation.
func WithCapabilities(caps ...Capability) StateOption {
	return func(s *State) {
		s.caps = append(s.caps, caps...)
	}
}

// WithPreload registers a module loader reachable through require.
func WithPreload(name string, loader lua.LGFunction) StateOption {
	return func(s *State) {
		if s.preload == nil {
			s.preload = make(map[string]lua.LGFunction)
		}
		s.preload[name] = loader
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	state.L = L
	openSafeLibraries(L)

	state.sandbox = NewSandbox(L)
	for name, loader := range state.preload {
		state.sandbox.Preload(name, loader)
	}
	state.sandbox.Install()
	for _, c := range state.caps {
		state.sandbox.Grant(c)
	}
	return state, nil
}

// openSafeLibraries opens the libraries every sandbox keeps.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	if s.closed {
		return ErrStateClosed
	}
	return s.run(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(code string) error {
	if s.closed {
		return ErrStateClosed
	}
	return s.run(func() error {
		return s.L.DoString(code)
	})
}

// Call calls a global Lua function.
func (s *State) Call(name string, args ...lua.LValue) ([]lua.LValue, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn, ok := s.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFunction)
	}
	return s.CallFunction(fn, args...)
}

// CallFunction calls fn and returns all of its results. It returns an empty
// slice, not nil, when fn returns nothing.
func (s *State) CallFunction(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	var results []lua.LValue
	err := s.run(func() error {
		top := s.L.GetTop()
		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(arg)
		}
		if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}
		n := s.L.GetTop() - top
		results = make([]lua.LValue, 0, max(n, 0))
		for i := 1; i <= n; i++ {
			results = append(results, s.L.Get(top+i))
		}
		if n > 0 {
			s.L.Pop(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// run executes fn with panic recovery. The outermost call installs the
// timeout context; nested calls share it.
func (s *State) run(fn func() error) (err error) {
	var ctx context.Context
	if s.depth == 0 && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
		s.L.SetContext(ctx)
		defer func() {
			s.L.RemoveContext()
			cancel()
		}()
	}
	s.depth++
	defer func() {
		s.depth--
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		if err != nil && ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
	}()
	return fn()
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// AddModulePath prepends <dir>/lua/?.lua and <dir>/lua/?/init.lua to
// package.path. It requires CapabilityModules.
func (s *State) AddModulePath(dir string) error {
	if s.closed {
		return ErrStateClosed
	}
	if err := s.sandbox.CheckCapability(CapabilityModules); err != nil {
		return err
	}
	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return errors.New("package library not loaded")
	}
	entries := dir + "/lua/?.lua;" + dir + "/lua/?/init.lua"
	current := lua.LVAsString(s.L.GetField(pkg, "path"))
	if current != "" {
		entries += ";" + current
	}
	s.L.SetField(pkg, "path", lua.LString(entries))
	return nil
}

// LuaState returns the underlying gopher-lua state.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Sandbox returns the sandbox for capability management.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// Close releases the interpreter. Later calls return ErrStateClosed.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

// LoadFile compiles a Lua file without running it.
func (s *State) LoadFile(path string) (*lua.LFunction, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	return s.L.LoadFile(path)
}
