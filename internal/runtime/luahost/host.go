// Package luahost runs compiled extensions inside a sandboxed gopher-lua
// interpreter.
//
// Scripts reach the host through the preloaded "host" module:
//
//	local host = require("host")
//	host.command("Build", function(cmd) ... end)
//	host.exec("Build! all")
//	host.on("BufEnter", function(event) ... end)
//	host.notify("message")
//
// A Host is single-threaded. All calls must come from one goroutine.
package luahost

import (
	"fmt"
	"slices"

	glua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/plugin/lua"
	"github.com/dshills/quiver/internal/runtime"
)

// ModuleName is the name scripts require to reach the host.
const ModuleName = "host"

// FileTypeEvent is the event listeners receive when a filetype is entered.
const FileTypeEvent = "FileType"

// Host implements runtime.Host on a Lua state.
type Host struct {
	state     *lua.State
	bridge    *lua.Bridge
	loader    *runtime.Loader
	commands  map[string]runtime.CommandHandler
	listeners map[string][]*glua.LFunction
	messages  []string
	notify    func(string)
	logger    *zap.Logger
	stateOpts []lua.StateOption
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithNotify sets a callback receiving every notification.
func WithNotify(fn func(string)) Option {
	return func(h *Host) { h.notify = fn }
}

// WithStateOptions passes extra options to the Lua state.
func WithStateOptions(opts ...lua.StateOption) Option {
	return func(h *Host) { h.stateOpts = append(h.stateOpts, opts...) }
}

// New creates a Host with a fresh Lua state.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		commands:  make(map[string]runtime.CommandHandler),
		listeners: make(map[string][]*glua.LFunction),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	stateOpts := append([]lua.StateOption{
		lua.WithCapabilities(lua.CapabilityModules, lua.CapabilityEnv),
		lua.WithPreload(ModuleName, h.openModule),
	}, h.stateOpts...)
	state, err := lua.NewState(stateOpts...)
	if err != nil {
		return nil, fmt.Errorf("create lua state: %w", err)
	}
	h.state = state
	h.bridge = lua.NewBridge(state.LuaState())
	return h, nil
}

// Attach connects the loader that receives events and filetypes.
func (h *Host) Attach(l *runtime.Loader) {
	h.loader = l
}

// State returns the underlying Lua state.
func (h *Host) State() *lua.State {
	return h.state
}

// Close releases the Lua state.
func (h *Host) Close() error {
	return h.state.Close()
}

// SourceFile runs a Lua file.
func (h *Host) SourceFile(path string) error {
	h.logger.Debug("source", zap.String("path", path))
	return h.state.DoFile(path)
}

// AddRuntimePath makes dir/lua reachable through require.
func (h *Host) AddRuntimePath(dir string) error {
	return h.state.AddModulePath(dir)
}

// Execute runs a hook code string.
func (h *Host) Execute(code string) error {
	return h.state.DoString(code)
}

// DefineCommand registers or replaces a command.
func (h *Host) DefineCommand(name string, handler runtime.CommandHandler) error {
	h.commands[name] = handler
	return nil
}

// ExecCommand parses line and dispatches it to the registered command.
func (h *Host) ExecCommand(line string) error {
	inv, err := runtime.ParseLine(line)
	if err != nil {
		return err
	}
	handler, ok := h.commands[inv.Name]
	if !ok {
		return fmt.Errorf("not an editor command: %s", inv.Name)
	}
	return handler(inv)
}

// Notify records msg and forwards it to the notify callback.
func (h *Host) Notify(msg string) {
	h.messages = append(h.messages, msg)
	h.logger.Warn("notify", zap.String("message", msg))
	if h.notify != nil {
		h.notify(msg)
	}
}

// Messages returns the notifications shown so far.
func (h *Host) Messages() []string {
	return slices.Clone(h.messages)
}

// Commands returns the defined command names in sorted order.
func (h *Host) Commands() []string {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Emit fires event: the loader loads its extensions first, then Lua
// listeners run in registration order.
func (h *Host) Emit(event string) error {
	var loadErr error
	if h.loader != nil {
		loadErr = h.loader.HandleEvent(event)
	}
	if err := h.dispatch(event, map[string]any{"event": event}); err != nil {
		return err
	}
	return loadErr
}

// EnterFiletype reports that a buffer of filetype ft was entered. Filetype
// files are sourced before FileType listeners run.
func (h *Host) EnterFiletype(ft string) error {
	var loadErr error
	if h.loader != nil {
		loadErr = h.loader.HandleFileType(ft)
	}
	if err := h.dispatch(FileTypeEvent, map[string]any{"event": FileTypeEvent, "match": ft}); err != nil {
		return err
	}
	return loadErr
}

func (h *Host) dispatch(event string, payload map[string]any) error {
	// Listeners added while dispatching wait for the next event.
	fns := slices.Clone(h.listeners[event])
	for _, fn := range fns {
		if _, err := h.state.CallFunction(fn, h.bridge.ToLuaValue(payload)); err != nil {
			return fmt.Errorf("%s listener: %w", event, err)
		}
	}
	return nil
}
