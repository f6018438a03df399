package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/quiver/internal/app"
	"github.com/dshills/quiver/internal/install"
	"github.com/dshills/quiver/internal/plugin/graph"
	"github.com/dshills/quiver/internal/state"
)

func (r *runner) runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	locked, _ := cmd.Flags().GetBool("locked")

	var lock *state.Lockfile
	if locked {
		var err error
		if lock, err = state.ReadLockfile(r.settings.Dir); err != nil {
			return app.NewOperationError("sync", state.LockfilePath(r.settings.Dir), err)
		}
	}
	records, err := r.records()
	if err != nil {
		return err
	}
	if err := r.installer().Sync(ctx, records, install.SyncOptions{Locked: locked, Lock: lock}); err != nil {
		return app.NewOperationError("sync", "", err)
	}
	if _, err := r.compiler().Run(ctx); err != nil {
		return app.NewOperationError("compile", r.settings.ConfigPath, err)
	}
	return writeLines(cmd.OutOrStdout(), "sync finished")
}

func (r *runner) runUpdate(cmd *cobra.Command, args []string) error {
	rev, _ := cmd.Flags().GetString("rev")
	if rev != "" && len(args) == 0 {
		return fmt.Errorf("%w: %v", app.ErrUsage, install.ErrRevWithoutNames)
	}
	records, err := r.records()
	if err != nil {
		return err
	}
	skipped, err := r.installer().Update(cmd.Context(), records, args, rev)
	out := cmd.OutOrStdout()
	for _, name := range skipped {
		_ = writeLines(out, "update skipped (dev override): "+name)
	}
	if err != nil {
		return app.NewOperationError("update", "", err)
	}
	return writeLines(out, "update finished")
}

func (r *runner) runStatus(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	records, err := r.records()
	if err != nil {
		return err
	}
	lock, err := state.ReadLockfile(r.settings.Dir)
	if err != nil {
		return app.NewOperationError("status", state.LockfilePath(r.settings.Dir), err)
	}
	report, err := r.installer().Status(cmd.Context(), records, lock)
	if err != nil {
		return app.NewOperationError("status", "", err)
	}

	out := cmd.OutOrStdout()
	if err := writeLines(out, report.Lines()...); err != nil {
		return err
	}
	dependents := graph.Dependents(records)
	for _, name := range report.Missing {
		if users := dependents[name]; len(users) > 0 {
			_ = writeLines(out, fmt.Sprintf("  %s is required by: %s", name, orDash(users)))
		}
	}
	if verbose {
		for _, name := range report.Dirty {
			for _, f := range report.Changes[name] {
				_ = writeLines(out, fmt.Sprintf("  %s: %s %s", name, f.Status, f.Path))
			}
		}
	}
	return nil
}

func (r *runner) runLock(cmd *cobra.Command, args []string) error {
	records, err := r.records()
	if err != nil {
		return err
	}
	lf, err := r.installer().Lock(cmd.Context(), records)
	if err != nil {
		return app.NewOperationError("lock", "", err)
	}
	if err := state.WriteLockfile(r.settings.Dir, lf); err != nil {
		return app.NewOperationError("lock", state.LockfilePath(r.settings.Dir), err)
	}
	return writeLines(cmd.OutOrStdout(), fmt.Sprintf("locked %d plugins -> %s", len(lf.Plugins), state.LockfilePath(r.settings.Dir)))
}

func (r *runner) runClean(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	records, err := r.records()
	if err != nil {
		return err
	}
	inst := r.installer()
	extra, err := inst.Extra(records)
	if err != nil {
		return app.NewOperationError("clean", inst.ReposDir(), err)
	}

	out := cmd.OutOrStdout()
	if len(extra) == 0 {
		return writeLines(out, "clean skipped (no extra repos)")
	}
	if !yes {
		_ = writeLines(out, fmt.Sprintf("would remove %d repos:", len(extra)))
		_ = writeLines(out, extra...)
		return writeLines(out, "rerun with --yes to remove them")
	}
	if err := inst.Remove(extra); err != nil {
		return app.NewOperationError("clean", "", err)
	}
	return writeLines(out, fmt.Sprintf("removed %d repos", len(extra)))
}
