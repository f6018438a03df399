package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/app"
	"github.com/dshills/quiver/internal/compile"
	"github.com/dshills/quiver/internal/config/watcher"
	"github.com/dshills/quiver/internal/state"
)

func (r *runner) runCompile(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	res, err := r.compiler(compile.WithDryRun(dryRun)).Run(cmd.Context())
	if err != nil {
		return app.NewOperationError("compile", r.settings.ConfigPath, err)
	}
	out := cmd.OutOrStdout()
	if !res.Written {
		return writeLines(out,
			fmt.Sprintf("dry run: %d plugins", len(res.State.Plugins)),
			"order: "+orDash(res.State.Order),
		)
	}
	return writeLines(out, fmt.Sprintf("compiled %d plugins -> %s", len(res.State.Plugins), state.Path(r.settings.Dir)))
}

// runWatch compiles once, then recompiles on every change to the
// configuration module or a hook module read by the last compile.
func (r *runner) runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	debounce, _ := cmd.Flags().GetDuration("debounce")
	if debounce <= 0 {
		debounce = watcher.DefaultDebounce
	}

	var w *watcher.Watcher
	rebuild := func() {
		paths := []string{r.settings.ConfigPath}
		res, err := r.compiler().Run(ctx)
		if err != nil {
			r.logger.Error("compile failed", zap.Error(err))
			_ = writeLines(out, "compile failed: "+err.Error())
		} else {
			paths = append(paths, res.HookPaths...)
			_ = writeLines(out, fmt.Sprintf("compiled %d plugins", len(res.State.Plugins)))
		}
		if err := w.Set(paths); err != nil {
			r.logger.Warn("watch set failed", zap.Error(err))
		}
	}

	var err error
	w, err = watcher.New(func(ev watcher.Event) {
		r.logger.Info("change detected", zap.Strings("paths", ev.Paths))
		rebuild()
	}, watcher.WithDebounce(debounce), watcher.WithLogger(r.logger))
	if err != nil {
		return app.NewOperationError("watch", r.settings.ConfigPath, err)
	}
	rebuild()
	_ = writeLines(out, "watching "+strings.Join(w.WatchedFiles(), ", "))
	return w.Run(ctx)
}

func orDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
