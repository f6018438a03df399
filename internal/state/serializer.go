package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Serializer publishes compiled artifacts into a data directory.
type Serializer struct {
	dir     string
	version string
	emitVim bool
	getenv  func(string) string
	logger  *zap.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithVersion sets the producer version recorded in the resolution manifest.
func WithVersion(v string) Option {
	return func(s *Serializer) { s.version = v }
}

// WithVimEmission enables writing state.vim next to state.json.
func WithVimEmission(enable bool) Option {
	return func(s *Serializer) { s.emitVim = enable }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Serializer) { s.logger = l }
}

// WithGetenv overrides environment lookup for helper resolution.
func WithGetenv(fn func(string) string) Option {
	return func(s *Serializer) { s.getenv = fn }
}

// NewSerializer creates a Serializer writing into dir.
func NewSerializer(dir string, opts ...Option) *Serializer {
	s := &Serializer{
		dir:    dir,
		getenv: os.Getenv,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the data directory.
func (s *Serializer) Dir() string { return s.dir }

// Write publishes st. Every artifact is fully written to a temp file before
// any of them is renamed into place, and the resolution manifest is
// refreshed in between. On error the previous artifacts are left untouched.
func (s *Serializer) Write(st *State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	outputs := []struct {
		path string
		data []byte
	}{{Path(s.dir), append(data, '\n')}}

	if s.emitVim {
		vim, err := RenderVim(st)
		if err != nil {
			return fmt.Errorf("failed to render state.vim: %w", err)
		}
		outputs = append(outputs, struct {
			path string
			data []byte
		}{filepath.Join(s.dir, VimFile), vim})
	}

	pending := make([]staged, 0, len(outputs))
	discard := func() {
		for _, p := range pending {
			p.discard()
		}
	}
	for _, out := range outputs {
		p, err := stage(out.path, out.data)
		if err != nil {
			discard()
			return err
		}
		pending = append(pending, p)
	}

	if err := WriteImportMap(s.dir, HelperLocator(s.version, s.getenv)); err != nil {
		discard()
		return fmt.Errorf("failed to write import map: %w", err)
	}

	for i, p := range pending {
		if err := p.commit(); err != nil {
			for _, rest := range pending[i+1:] {
				rest.discard()
			}
			return err
		}
		s.logger.Debug("artifact written", zap.String("path", p.path))
	}
	s.logger.Info("state compiled",
		zap.String("path", Path(s.dir)),
		zap.Int("plugins", len(st.Plugins)),
	)
	return nil
}
