package runtime

import "slices"

// State is the load state of one extension within a session.
type State int

// Extension states.
const (
	// StateUnloaded - not loaded yet.
	StateUnloaded State = iota

	// StateLoaded - runtime files sourced; terminal for the session.
	StateLoaded
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Session is the mutable state of one host session: which extensions are
// loaded and which command stubs are in progress.
type Session struct {
	loaded  map[string]bool
	loading map[string]bool
	running map[string]bool
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		loaded:  make(map[string]bool),
		loading: make(map[string]bool),
		running: make(map[string]bool),
	}
}

// State returns the state of name.
func (s *Session) State(name string) State {
	if s.loaded[name] {
		return StateLoaded
	}
	return StateUnloaded
}

// IsLoaded reports whether name is loaded.
func (s *Session) IsLoaded(name string) bool {
	return s.loaded[name]
}

// Loaded returns the loaded names in sorted order.
func (s *Session) Loaded() []string {
	names := make([]string, 0, len(s.loaded))
	for name := range s.loaded {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CommandRunning reports whether the stub for name is in progress.
func (s *Session) CommandRunning(name string) bool {
	return s.running[name]
}
