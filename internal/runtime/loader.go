package runtime

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/state"
)

// Loader interprets a compiled state inside a host.
type Loader struct {
	state   *state.State
	host    Host
	session *Session
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithSession makes the loader drive an existing session.
func WithSession(s *Session) Option {
	return func(ld *Loader) { ld.session = s }
}

// NewLoader creates a Loader for st.
func NewLoader(st *state.State, host Host, opts ...Option) *Loader {
	l := &Loader{
		state:  st,
		host:   host,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.session == nil {
		l.session = NewSession()
	}
	return l
}

// Session returns the session driven by the loader.
func (l *Loader) Session() *Session {
	return l.session
}

// Start performs startup: boot sources, pre-load hooks, command stubs and
// eager loads, each in artifact order. Every step runs even when an
// earlier one failed; the returned error joins all soft failures.
func (l *Loader) Start() error {
	var errs []error

	for _, name := range l.state.Order {
		p, ok := l.state.Plugins[name]
		if !ok {
			continue
		}
		if err := l.sourceAll(p.RuntimeDir(), p.BootSources); err != nil {
			errs = append(errs, l.soft(name, err))
		}
	}

	for _, name := range l.state.Order {
		p, ok := l.state.Plugins[name]
		if !ok || p.Hooks.Add == "" {
			continue
		}
		if err := l.host.Execute(p.Hooks.Add); err != nil {
			errs = append(errs, l.soft(name, fmt.Errorf("hookAdd: %w", err)))
		}
	}

	// A command-lazy extension loaded below as a dependency replaces its stub.
	for _, cmd := range l.state.Triggers.Commands() {
		if err := l.host.DefineCommand(cmd, l.commandStub(cmd)); err != nil {
			errs = append(errs, fmt.Errorf("define command %s: %w", cmd, err))
		}
	}

	for _, name := range l.state.Order {
		p, ok := l.state.Plugins[name]
		if !ok || p.IsLazy() {
			continue
		}
		if err := l.Load(name); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Load loads name and its dependencies. Loading an already loaded extension
// is a no-op, and so is loading one whose runtime root does not exist.
func (l *Loader) Load(name string) error {
	if l.session.loaded[name] || l.session.loading[name] {
		return nil
	}
	p, ok := l.state.Plugins[name]
	if !ok {
		return l.soft(name, ErrUnknownPlugin)
	}

	l.session.loading[name] = true
	defer delete(l.session.loading, name)

	var errs []error
	for _, dep := range p.Depends {
		if err := l.Load(dep); err != nil {
			errs = append(errs, err)
		}
	}

	rtp := p.RuntimeDir()
	if rtp == "" || !isDir(rtp) {
		l.logger.Debug("runtime root missing, skipping", zap.String("plugin", name), zap.String("path", rtp))
		return errors.Join(errs...)
	}
	if err := l.host.AddRuntimePath(rtp); err != nil {
		return errors.Join(append(errs, l.soft(name, err))...)
	}
	if err := l.sourceAll(rtp, p.Sources); err != nil {
		return errors.Join(append(errs, l.soft(name, err))...)
	}
	if p.Hooks.Source != "" {
		if err := l.host.Execute(p.Hooks.Source); err != nil {
			return errors.Join(append(errs, l.soft(name, fmt.Errorf("hookSource: %w", err)))...)
		}
	}

	l.session.loaded[name] = true
	l.logger.Debug("plugin loaded", zap.String("plugin", name))
	return errors.Join(errs...)
}

// HandleEvent loads every extension registered for event.
func (l *Loader) HandleEvent(event string) error {
	var errs []error
	for _, name := range l.state.Triggers.Event[event] {
		if err := l.Load(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleFileType loads every extension registered for ft, then sources the
// filetype files for ft of every loaded extension.
func (l *Loader) HandleFileType(ft string) error {
	var errs []error
	for _, name := range l.state.Triggers.Ft[ft] {
		if err := l.Load(name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range l.state.Order {
		if !l.session.loaded[name] {
			continue
		}
		p := l.state.Plugins[name]
		rtp := p.RuntimeDir()
		if rtp == "" {
			continue
		}
		if err := l.sourceAll(rtp, p.FtSources.ForFiletype(ft)); err != nil {
			errs = append(errs, l.soft(name, err))
		}
	}
	return errors.Join(errs...)
}

// commandStub returns the handler registered for a trigger command. The
// command stays marked while its extensions load and while the original
// invocation is re-issued.
func (l *Loader) commandStub(cmd string) CommandHandler {
	return func(inv Invocation) error {
		if l.session.running[cmd] {
			l.host.Notify("command not found after load: " + cmd)
			return fmt.Errorf("%w: %s", ErrCommandReentry, cmd)
		}
		l.session.running[cmd] = true
		defer delete(l.session.running, cmd)

		var errs []error
		for _, name := range l.state.Triggers.Cmd[cmd] {
			if err := l.Load(name); err != nil {
				errs = append(errs, err)
			}
		}
		inv.Name = cmd
		if err := l.host.ExecCommand(inv.Line()); err != nil {
			return errors.Join(append(errs, err)...)
		}
		return errors.Join(errs...)
	}
}

// sourceAll sources files under root in order, skipping files that do not
// exist. It stops at the first failure.
func (l *Loader) sourceAll(root string, files []string) error {
	if root == "" {
		return nil
	}
	for _, f := range files {
		path := plugin.JoinPath(root, f)
		if !isFile(path) {
			continue
		}
		if err := l.host.SourceFile(path); err != nil {
			return fmt.Errorf("source %s: %w", path, err)
		}
	}
	return nil
}

func (l *Loader) soft(name string, err error) error {
	l.logger.Warn("plugin load failed", zap.String("plugin", name), zap.Error(err))
	return &LoadError{Plugin: name, Err: err}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
