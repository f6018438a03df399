// Package cli wires the quiver commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/quiver/internal/app"
	"github.com/dshills/quiver/internal/compile"
	"github.com/dshills/quiver/internal/config"
	"github.com/dshills/quiver/internal/install"
	"github.com/dshills/quiver/internal/integration/git"
	"github.com/dshills/quiver/internal/plugin"
)

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// runner holds what every command shares after flag parsing.
type runner struct {
	info    BuildInfo
	environ func() []string
	home    string

	dir      string
	config   string
	logLevel string
	logJSON  bool
	jobs     int

	settings *config.Settings
	logger   *zap.Logger
}

// Option configures the root command. Tests use these to isolate the
// environment.
type Option func(*runner)

// WithEnviron replaces the process environment.
func WithEnviron(fn func() []string) Option {
	return func(r *runner) { r.environ = fn }
}

// WithHomeDir replaces the user's home directory.
func WithHomeDir(home string) Option {
	return func(r *runner) { r.home = home }
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo, opts ...Option) *cobra.Command {
	r := &runner{info: info, environ: os.Environ, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	rootCmd := &cobra.Command{
		Use:   "quiver",
		Short: "Compile and load editor extensions ahead of startup",
		Long: `Quiver evaluates a configuration module that declares editor extensions,
resolves their load order, lazy triggers and script files, and publishes
the result as a state artifact the runtime loader reads at startup.

Artifacts are written to the data directory (--dir).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: r.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = r.logger.Sync()
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", app.ErrUsage, err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&r.dir, "dir", "", "Data directory for checkouts and artifacts")
	pf.StringVar(&r.config, "config", "", "Configuration module path")
	pf.StringVar(&r.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.BoolVar(&r.logJSON, "log-json", false, "Write logs as JSON")
	pf.IntVar(&r.jobs, "jobs", 0, "Parallel directory scans (0 = one per CPU)")

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the configuration into the state artifact",
		Args:  noArgs,
		RunE:  r.runCompile,
	}
	compileCmd.Flags().Bool("dry-run", false, "Build the artifact without writing anything")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile whenever the configuration or a hook module changes",
		Args:  noArgs,
		RunE:  r.runWatch,
	}
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before recompiling (default 200ms)")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Install and refresh every remote extension, then compile",
		Args:  noArgs,
		RunE:  r.runSync,
	}
	syncCmd.Flags().Bool("locked", false, "Check out the revisions recorded in lock.json")

	updateCmd := &cobra.Command{
		Use:   "update [names...]",
		Short: "Refresh the named extensions, or all of them",
		RunE:  r.runUpdate,
	}
	updateCmd.Flags().String("rev", "", "Revision to check out (requires names)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show missing, extra, dirty and out-of-lock checkouts",
		Args:  noArgs,
		RunE:  r.runStatus,
	}
	statusCmd.Flags().BoolP("verbose", "v", false, "List the changed files of dirty checkouts")

	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Record the current revision of every checkout in lock.json",
		Args:  noArgs,
		RunE:  r.runLock,
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove checkouts no longer declared",
		Args:  noArgs,
		RunE:  r.runClean,
	}
	cleanCmd.Flags().BoolP("yes", "y", false, "Remove without asking")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check git, the data directory and the published artifact",
		Args:  noArgs,
		RunE:  r.runCheck,
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay startup and triggers against the published artifact",
		Long: `Simulate starts the runtime loader on an embedded Lua host using the
published state, then fires the given events, filetypes and command lines
in that order, and reports what was loaded.`,
		Args: noArgs,
		RunE: r.runSimulate,
	}
	simulateCmd.Flags().StringArray("event", nil, "Event to fire (repeatable)")
	simulateCmd.Flags().StringArray("filetype", nil, "Filetype to enter (repeatable)")
	simulateCmd.Flags().StringArray("command", nil, "Command line to run (repeatable)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "quiver %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
			return err
		},
	}

	rootCmd.AddCommand(
		compileCmd,
		watchCmd,
		syncCmd,
		updateCmd,
		statusCmd,
		lockCmd,
		cleanCmd,
		checkCmd,
		simulateCmd,
		versionCmd,
	)
	return rootCmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return fmt.Errorf("%w: %v", app.ErrUsage, err)
	}
	return nil
}

// setup resolves settings and the logger before any command runs.
func (r *runner) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("dir") {
		overrides[config.KeyDir] = r.dir
	}
	if flags.Changed("config") {
		overrides[config.KeyConfig] = r.config
	}
	if flags.Changed("log-level") {
		overrides[config.KeyLogLevel] = r.logLevel
	}
	if flags.Changed("log-json") {
		overrides[config.KeyLogJSON] = r.logJSON
	}
	if flags.Changed("jobs") {
		overrides[config.KeyJobs] = int64(r.jobs)
	}

	settings, err := config.Load(config.Options{
		Environ:   r.environ,
		HomeDir:   r.home,
		Overrides: overrides,
	})
	if err != nil {
		if errors.Is(err, config.ErrValidationFailed) || errors.Is(err, config.ErrTypeMismatch) {
			return fmt.Errorf("%w: %v", app.ErrUsage, err)
		}
		return err
	}
	level, err := app.ParseLogLevel(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", app.ErrUsage, err)
	}

	r.settings = settings
	r.logger = app.WithRun(app.NewLogger(app.LoggerConfig{
		Level:  level,
		JSON:   settings.LogJSON,
		Output: cmd.ErrOrStderr(),
	}), app.NewRunID()).With(zap.String("command", cmd.Name()))
	return nil
}

// getenv looks names up in the runner's environment.
func (r *runner) getenv(name string) string {
	for _, kv := range r.environ() {
		if v, ok := strings.CutPrefix(kv, name+"="); ok {
			return v
		}
	}
	return ""
}

func (r *runner) compiler(opts ...compile.Option) *compile.Compiler {
	base := []compile.Option{
		compile.WithLogger(r.logger),
		compile.WithGetenv(r.getenv),
	}
	return compile.New(compile.Config{
		ConfigPath: r.settings.ConfigPath,
		DataDir:    r.settings.Dir,
		Version:    r.info.Version,
		ScriptExt:  r.settings.ScriptExt,
		EmitVim:    r.settings.EmitsVim(),
		Jobs:       r.settings.Jobs,
	}, append(base, opts...)...)
}

// records evaluates the configuration without compiling.
func (r *runner) records() ([]plugin.Record, error) {
	records, err := r.compiler().Records()
	if err != nil {
		return nil, app.NewOperationError("config", r.settings.ConfigPath, err)
	}
	return records, nil
}

func (r *runner) git() *git.Client {
	return git.New(git.WithBinary(r.settings.Git), git.WithLogger(r.logger))
}

func (r *runner) installer() *install.Installer {
	return install.New(r.git(), r.settings.Dir, install.WithLogger(r.logger))
}

func writeLines(w io.Writer, lines ...string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
