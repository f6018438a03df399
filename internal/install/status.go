package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/quiver/internal/integration/git"
	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/state"
)

// Report summarizes the checkouts against the configuration.
type Report struct {
	Missing      []string
	Extra        []string
	Dirty        []string
	LockMismatch []string
	DevOverride  []string
	// Changes lists the porcelain entries of each dirty checkout.
	Changes map[string][]git.FileStatus
}

// Lines renders the report one category per line, "-" marking an empty one.
func (r *Report) Lines() []string {
	line := func(label string, names []string) string {
		if len(names) == 0 {
			return label + ": -"
		}
		return fmt.Sprintf("%s: %s", label, strings.Join(names, ", "))
	}
	return []string{
		line("missing", r.Missing),
		line("extra", r.Extra),
		line("dirty", r.Dirty),
		line("lock mismatch", r.LockMismatch),
		line("dev override", r.DevOverride),
	}
}

// Status inspects every record. A nil lock, or one with another schema,
// skips the lock comparison.
func (i *Installer) Status(ctx context.Context, records []plugin.Record, lock *state.Lockfile) (*Report, error) {
	r := &Report{Changes: map[string][]git.FileStatus{}}
	for idx := range records {
		rec := &records[idx]
		if rec.Dev.Enable {
			r.DevOverride = append(r.DevOverride, rec.Name)
			continue
		}
		path := rec.BaseDir(i.dataDir)
		if !isDir(path) {
			r.Missing = append(r.Missing, rec.Name)
			continue
		}
		status := i.git.StatusPorcelain(ctx, path)
		if status.OK() && status.Stdout != "" {
			r.Dirty = append(r.Dirty, rec.Name)
			r.Changes[rec.Name] = git.ParsePorcelain(status.Stdout)
		}
		if lock == nil || lock.Schema != state.LockSchema {
			continue
		}
		expected := lock.Plugins[rec.Name]
		if expected == "" {
			continue
		}
		head := i.git.Head(ctx, path)
		if head.OK() && head.Stdout != "" && head.Stdout != expected {
			r.LockMismatch = append(r.LockMismatch, rec.Name)
		}
	}

	extra, err := i.Extra(records)
	if err != nil {
		return nil, err
	}
	r.Extra = extra
	return r, ctx.Err()
}
