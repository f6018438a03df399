// Package lua wraps gopher-lua for configuration modules, hook modules and
// the runtime host.
//
// # State
//
// State is a sandboxed interpreter:
//
//	state, err := lua.NewState(lua.WithTimeout(5 * time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.DoFile("init.lua"); err != nil {
//	    return err
//	}
//
// A State is not safe for concurrent use. Calls may nest (a Go function
// invoked from Lua may run more Lua on the same State); the timeout covers
// the outermost call.
//
// # Sandbox
//
// The sandbox removes dofile, loadfile, load and loadstring, and replaces
// require with a version that only loads built-in and preloaded modules.
// Capabilities widen this:
//   - CapabilityModules: require searches package.path (see AddModulePath)
//   - CapabilityEnv: a read-only os table (getenv, time, clock, date)
//   - CapabilityUnsafe: the full io, os and debug libraries
//
// # Bridge
//
// Bridge converts between Lua values and plain Go values. Tables with
// contiguous integer keys become []any, other tables map[string]any, and
// empty tables become empty lists.
package lua
