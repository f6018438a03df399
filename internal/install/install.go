// Package install manages the git checkouts of remote extensions.
//
// Checkouts live under <dataDir>/repos at the location plugin.InstallDir
// derives from the locator. Development records are never touched.
package install

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/integration/git"
	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/hook"
	"github.com/dshills/quiver/internal/state"
)

// FetchHead is checked out when an existing checkout has no pinned revision.
const FetchHead = "FETCH_HEAD"

// Installer clones, updates and inspects checkouts.
type Installer struct {
	git     *git.Client
	dataDir string
	hooks   *hook.PostUpdate
	logger  *zap.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// WithPostUpdate sets the post-update hook runner.
func WithPostUpdate(p *hook.PostUpdate) Option {
	return func(i *Installer) { i.hooks = p }
}

// New creates an Installer for dataDir.
func New(client *git.Client, dataDir string, opts ...Option) *Installer {
	i := &Installer{
		git:     client,
		dataDir: dataDir,
		hooks:   hook.NewPostUpdate(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ReposDir returns the root of all managed checkouts.
func (i *Installer) ReposDir() string {
	return plugin.JoinPath(i.dataDir, plugin.ReposDirName)
}

// SyncOptions control Sync.
type SyncOptions struct {
	// Locked pins every checkout to the revision in Lock.
	Locked bool
	Lock   *state.Lockfile
}

// Sync installs or refreshes every remote record, then runs post-update
// hooks in declaration order. It stops at the first failure.
func (i *Installer) Sync(ctx context.Context, records []plugin.Record, opts SyncOptions) error {
	if opts.Locked {
		if opts.Lock == nil {
			return ErrLockMissing
		}
		if opts.Lock.Schema != state.LockSchema {
			return ErrLockSchema
		}
	}
	if err := os.MkdirAll(i.ReposDir(), 0o755); err != nil {
		return err
	}

	for idx := range records {
		rec := &records[idx]
		if rec.Dev.Enable {
			continue
		}
		var pinned string
		if opts.Locked {
			pinned = opts.Lock.Plugins[rec.Name]
			if pinned == "" {
				return fmt.Errorf("%w for %s", ErrLockEntry, rec.Name)
			}
		}
		if err := i.refresh(ctx, rec, pinned); err != nil {
			return err
		}
	}

	for idx := range records {
		rec := &records[idx]
		if rec.Dev.Enable || rec.PostUpdate == "" {
			continue
		}
		if err := i.hooks.Run(ctx, rec.PostUpdate, rec.Name, rec.BaseDir(i.dataDir)); err != nil {
			return err
		}
		i.logger.Info("post-update hook ran", zap.String("plugin", rec.Name))
	}
	return nil
}

// Update refreshes the named records, or every record when names is empty.
// rev overrides the declared revision and needs at least one name.
// Development records are skipped and returned.
func (i *Installer) Update(ctx context.Context, records []plugin.Record, names []string, rev string) ([]string, error) {
	if rev != "" && len(names) == 0 {
		return nil, ErrRevWithoutNames
	}
	targets, err := selectRecords(records, names)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(i.ReposDir(), 0o755); err != nil {
		return nil, err
	}

	var skipped []string
	for _, rec := range targets {
		if rec.Dev.Enable {
			skipped = append(skipped, rec.Name)
			i.logger.Warn("update skipped (dev override)", zap.String("plugin", rec.Name))
			continue
		}
		if err := i.refresh(ctx, rec, rev); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// refresh clones a missing checkout or fetches an existing one, then
// checks out rev, the declared revision, or FETCH_HEAD, in that order.
// A fresh clone without any revision stays on the default branch.
func (i *Installer) refresh(ctx context.Context, rec *plugin.Record, rev string) error {
	path := rec.BaseDir(i.dataDir)
	exists := isDir(path)
	if !exists {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := i.git.Clone(ctx, rec.Repo, path).Err(); err != nil {
			return fmt.Errorf("clone failed: %s: %w", rec.Name, err)
		}
		i.logger.Info("cloned", zap.String("plugin", rec.Name), zap.String("path", path))
	} else if err := i.git.Fetch(ctx, path).Err(); err != nil {
		return fmt.Errorf("fetch failed: %s: %w", rec.Name, err)
	}

	if rev == "" {
		rev = rec.Rev
	}
	if rev == "" && exists {
		rev = FetchHead
	}
	if rev == "" {
		return nil
	}
	if err := i.git.Checkout(ctx, path, rev).Err(); err != nil {
		return fmt.Errorf("checkout failed: %s: %w", rec.Name, err)
	}
	i.logger.Debug("checked out", zap.String("plugin", rec.Name), zap.String("rev", rev))
	return nil
}

// Lock records the HEAD of every remote checkout.
func (i *Installer) Lock(ctx context.Context, records []plugin.Record) (*state.Lockfile, error) {
	lf := &state.Lockfile{Schema: state.LockSchema, Plugins: map[string]string{}}
	for idx := range records {
		rec := &records[idx]
		if rec.Dev.Enable {
			continue
		}
		path := rec.BaseDir(i.dataDir)
		if !isDir(path) {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, rec.Name)
		}
		head := i.git.Head(ctx, path)
		if err := head.Err(); err != nil {
			return nil, fmt.Errorf("rev-parse failed: %s: %w", rec.Name, err)
		}
		if head.Stdout == "" {
			return nil, fmt.Errorf("rev-parse failed: %s: empty HEAD", rec.Name)
		}
		lf.Plugins[rec.Name] = head.Stdout
	}
	return lf, nil
}

// Extra returns checkouts under ReposDir that no remote record refers to,
// sorted.
func (i *Installer) Extra(records []plugin.Record) ([]string, error) {
	desired := make(map[string]bool, len(records))
	for idx := range records {
		if !records[idx].Dev.Enable {
			desired[records[idx].BaseDir(i.dataDir)] = true
		}
	}
	roots, err := gitRoots(i.ReposDir())
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(roots, func(p string) bool { return desired[p] }), nil
}

// Remove deletes the given checkouts. Paths outside ReposDir are refused.
func (i *Installer) Remove(paths []string) error {
	root := i.ReposDir() + "/"
	for _, p := range paths {
		if !strings.HasPrefix(filepath.ToSlash(p), root) {
			return fmt.Errorf("refusing to remove %s outside %s", p, i.ReposDir())
		}
		if err := os.RemoveAll(p); err != nil {
			return err
		}
		i.logger.Info("removed", zap.String("path", p))
	}
	return nil
}

func selectRecords(records []plugin.Record, names []string) ([]*plugin.Record, error) {
	if len(names) == 0 {
		out := make([]*plugin.Record, len(records))
		for idx := range records {
			out[idx] = &records[idx]
		}
		return out, nil
	}
	byName := plugin.ByName(records)
	seen := make(map[string]bool, len(names))
	var out []*plugin.Record
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		rec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
		out = append(out, rec)
	}
	return out, nil
}

// gitRoots returns directories under root holding a .git directory. The
// walk does not descend into a found root.
func gitRoots(root string) ([]string, error) {
	if !isDir(root) {
		return nil, nil
	}
	var roots []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if isDir(filepath.Join(path, ".git")) {
			roots = append(roots, filepath.ToSlash(path))
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(roots)
	return roots, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
