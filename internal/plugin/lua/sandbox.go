package lua

import (
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Capability widens what sandboxed code may do.
type Capability string

// Available capabilities.
const (
	CapabilityModules Capability = "modules" // require searches package.path
	CapabilityEnv     Capability = "env"     // read-only os table
	CapabilityUnsafe  Capability = "unsafe"  // full io, os and debug libraries
)

// safeModules are the built-in modules require always returns.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	capabilities map[Capability]bool
	preloaded    map[string]bool
}

// NewSandbox creates a sandbox for L.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:            L,
		capabilities: make(map[Capability]bool),
		preloaded:    make(map[string]bool),
	}
}

// Preload registers a module loader that require may return.
func (s *Sandbox) Preload(name string, loader lua.LGFunction) {
	s.L.PreloadModule(name, loader)
	s.preloaded[name] = true
}

// Install removes the loaders that bypass the sandbox and replaces require.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}
	s.installRequire()
}

func (s *Sandbox) installRequire() {
	original := s.L.GetGlobal("require")
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		allowed := safeModules[name] || s.preloaded[name] || s.capabilities[CapabilityModules]
		if !allowed {
			switch name {
			case "io", "os", "debug":
				allowed = s.capabilities[CapabilityUnsafe]
			}
		}
		if !allowed {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

// Grant enables a capability.
func (s *Sandbox) Grant(c Capability) {
	if s.capabilities[c] {
		return
	}
	s.capabilities[c] = true
	switch c {
	case CapabilityEnv:
		s.injectEnvAPI()
	case CapabilityUnsafe:
		lua.OpenIo(s.L)
		lua.OpenOs(s.L)
		lua.OpenDebug(s.L)
	}
}

// HasCapability reports whether c is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	return s.capabilities[c]
}

// CheckCapability returns a *CapabilityError if c is not granted.
func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.capabilities[c] {
		return &CapabilityError{Capability: c}
	}
	return nil
}

// injectEnvAPI installs a read-only os table.
func (s *Sandbox) injectEnvAPI() {
	if s.capabilities[CapabilityUnsafe] {
		return
	}
	osMod := s.L.NewTable()
	s.L.SetField(osMod, "getenv", s.L.NewFunction(func(L *lua.LState) int {
		value, ok := os.LookupEnv(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(value))
		return 1
	}))
	s.L.SetField(osMod, "time", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	start := time.Now()
	s.L.SetField(osMod, "clock", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Since(start).Seconds()))
		return 1
	}))
	s.L.SetField(osMod, "date", s.L.NewFunction(func(L *lua.LState) int {
		layout := L.OptString(1, "%c")
		L.Push(lua.LString(strftime(strings.TrimPrefix(layout, "!"), time.Now())))
		return 1
	}))
	s.L.SetGlobal("os", osMod)
}

// strftime supports the common conversions of os.date.
func strftime(layout string, t time.Time) string {
	var b strings.Builder
	for i := 0; i < len(layout); i++ {
		c := layout[i]
		if c != '%' || i+1 == len(layout) {
			b.WriteByte(c)
			continue
		}
		i++
		switch layout[i] {
		case 'Y':
			b.WriteString(t.Format("2006"))
		case 'm':
			b.WriteString(t.Format("01"))
		case 'd':
			b.WriteString(t.Format("02"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'M':
			b.WriteString(t.Format("04"))
		case 'S':
			b.WriteString(t.Format("05"))
		case 'c':
			b.WriteString(t.Format(time.ANSIC))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(layout[i])
		}
	}
	return b.String()
}

// CapabilityError is returned when a capability is not granted.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return "capability not granted: " + string(e.Capability)
}
