// Package compile turns a configuration module into the published state
// artifact.
//
// The pipeline is: evaluate the configuration module, normalize the
// declarations, resolve the dependency order and index triggers in
// parallel, classify every runtime root in parallel, resolve hook modules,
// assemble the artifact and publish it atomically. Any failure aborts the
// compile before publication, leaving earlier artifacts untouched.
package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/quiver/internal/config/module"
	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/graph"
	"github.com/dshills/quiver/internal/plugin/hook"
	"github.com/dshills/quiver/internal/plugin/scan"
	"github.com/dshills/quiver/internal/plugin/trigger"
	"github.com/dshills/quiver/internal/state"
)

// Config describes one compile.
type Config struct {
	// ConfigPath is the configuration module.
	ConfigPath string
	// DataDir receives the artifacts and holds managed checkouts.
	DataDir string
	// Version is recorded in the artifact metadata.
	Version string
	// ScriptExt is the script extension to classify.
	ScriptExt string
	// EmitVim also publishes the Vim-dialect artifact.
	EmitVim bool
	// Jobs bounds parallel scans; 0 means one per CPU.
	Jobs int
}

// Result is the outcome of a successful compile.
type Result struct {
	State   *state.State
	Records []plugin.Record
	// HookPaths are the hook modules read during the compile.
	HookPaths []string
	// Written is false for dry runs.
	Written bool
}

// Compiler runs compiles.
type Compiler struct {
	cfg    Config
	env    plugin.Env
	getenv func(string) string
	now    func() time.Time
	dryRun bool
	logger *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithEnv sets the path environment used for normalization.
func WithEnv(env plugin.Env) Option {
	return func(c *Compiler) { c.env = env }
}

// WithGetenv sets the environment lookup for the configuration context and
// the helper locator.
func WithGetenv(fn func(string) string) Option {
	return func(c *Compiler) { c.getenv = fn }
}

// WithClock sets the time source for the generation timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithDryRun builds the artifact without publishing anything.
func WithDryRun(dry bool) Option {
	return func(c *Compiler) { c.dryRun = dry }
}

// New creates a Compiler.
func New(cfg Config, opts ...Option) *Compiler {
	c := &Compiler{
		cfg:    cfg,
		getenv: os.Getenv,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.env == nil {
		c.env = plugin.OSEnv{BaseDir: filepath.Dir(cfg.ConfigPath)}
	}
	if c.cfg.Jobs <= 0 {
		c.cfg.Jobs = goruntime.NumCPU()
	}
	return c
}

// Records evaluates and normalizes the configuration without scanning or
// publishing.
func (c *Compiler) Records() ([]plugin.Record, error) {
	locator := state.HelperLocator(c.cfg.Version, c.getenv)
	if !c.dryRun {
		if err := state.EnsureImportMap(c.cfg.DataDir, locator); err != nil {
			return nil, fmt.Errorf("import map: %w", err)
		}
		if m, err := state.ReadImportMap(c.cfg.DataDir); err == nil {
			locator = m.Imports[state.HelperModule]
		}
	}

	loader := module.NewLoader(module.WithHelperLocator(locator), module.WithLogger(c.logger))
	decls, err := loader.Load(c.cfg.ConfigPath, module.Context{
		ConfigPath: c.cfg.ConfigPath,
		DataDir:    c.cfg.DataDir,
		Getenv:     c.getenv,
	})
	if err != nil {
		return nil, err
	}
	return plugin.NewNormalizer(c.env).NormalizeAll(decls)
}

// Run performs one compile.
func (c *Compiler) Run(ctx context.Context) (*Result, error) {
	start := c.now()
	records, err := c.Records()
	if err != nil {
		return nil, err
	}

	var (
		order    []string
		triggers trigger.Table
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		order, err = graph.Resolve(records)
		return err
	})
	g.Go(func() error {
		triggers = trigger.Build(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifests, err := c.classify(ctx, records)
	if err != nil {
		return nil, err
	}

	hooks, hookPaths, err := c.resolveHooks(records)
	if err != nil {
		return nil, err
	}

	st := state.Assemble(state.Input{
		Version:    c.cfg.Version,
		ConfigPath: c.cfg.ConfigPath,
		DataDir:    c.cfg.DataDir,
		Records:    records,
		Order:      order,
		Triggers:   triggers,
		Manifests:  manifests,
		Hooks:      hooks,
	}, c.now())

	res := &Result{State: st, Records: records, HookPaths: hookPaths}
	if c.dryRun {
		return res, nil
	}

	serializer := state.NewSerializer(c.cfg.DataDir,
		state.WithVersion(c.cfg.Version),
		state.WithVimEmission(c.cfg.EmitVim),
		state.WithGetenv(c.getenv),
		state.WithLogger(c.logger),
	)
	if err := serializer.Write(st); err != nil {
		return nil, err
	}
	res.Written = true

	c.logger.Info("compiled",
		zap.Int("plugins", len(records)),
		zap.String("state", state.Path(c.cfg.DataDir)),
		zap.Duration("took", c.now().Sub(start)),
	)
	return res, nil
}

// classify scans every runtime root, at most Jobs at a time.
func (c *Compiler) classify(ctx context.Context, records []plugin.Record) (map[string]scan.Manifest, error) {
	cls := scan.New(c.cfg.ScriptExt)
	manifests := make(map[string]scan.Manifest, len(records))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Jobs)
	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := cls.ClassifyRecord(rec, c.cfg.DataDir)
			if err != nil {
				return fmt.Errorf("%s: %w", rec.Name, err)
			}
			mu.Lock()
			manifests[rec.Name] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}

func (c *Compiler) resolveHooks(records []plugin.Record) (map[string]state.Hooks, []string, error) {
	resolver, err := hook.NewResolver(map[string]any{
		"config_path": c.cfg.ConfigPath,
		"data_dir":    c.cfg.DataDir,
		"dir":         filepath.Dir(c.cfg.ConfigPath),
	}, 0, hook.WithLogger(c.logger))
	if err != nil {
		return nil, nil, err
	}

	hooks := make(map[string]state.Hooks, len(records))
	for _, rec := range records {
		add, err := resolver.Resolve(rec.HookAdd, hook.KindAdd)
		if err != nil {
			return nil, nil, &plugin.FieldError{Plugin: rec.Name, Field: "hookAdd", Err: err}
		}
		src, err := resolver.Resolve(rec.HookSource, hook.KindSource)
		if err != nil {
			return nil, nil, &plugin.FieldError{Plugin: rec.Name, Field: "hookSource", Err: err}
		}
		hooks[rec.Name] = state.Hooks{Add: add, Source: src}
	}
	return hooks, resolver.Paths(), nil
}
