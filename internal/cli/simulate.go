package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/quiver/internal/app"
	"github.com/dshills/quiver/internal/runtime"
	"github.com/dshills/quiver/internal/runtime/luahost"
	"github.com/dshills/quiver/internal/state"
)

// runSimulate drives the runtime loader against a Lua host. Load failures
// are printed; only a missing or unreadable artifact fails the command.
func (r *runner) runSimulate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	events, _ := flags.GetStringArray("event")
	filetypes, _ := flags.GetStringArray("filetype")
	commands, _ := flags.GetStringArray("command")

	st, err := state.Read(r.settings.Dir)
	if err != nil {
		return app.NewOperationError("simulate", state.Path(r.settings.Dir), err)
	}

	out := cmd.OutOrStdout()
	report := func(step string, err error) {
		if err != nil {
			_ = writeLines(out, fmt.Sprintf("%s: error: %v", step, err))
		}
	}

	host, err := luahost.New(
		luahost.WithLogger(r.logger),
		luahost.WithNotify(func(msg string) { _ = writeLines(out, "notify: "+msg) }),
	)
	if err != nil {
		return app.NewOperationError("simulate", "", err)
	}
	defer host.Close()

	loader := runtime.NewLoader(st, host, runtime.WithLogger(r.logger))
	host.Attach(loader)

	report("start", loader.Start())
	for _, ev := range events {
		report("event "+ev, host.Emit(ev))
	}
	for _, ft := range filetypes {
		report("filetype "+ft, host.EnterFiletype(ft))
	}
	for _, line := range commands {
		report("command "+line, host.ExecCommand(line))
	}

	loaded := loader.Session().Loaded()
	pending := make([]string, 0, len(st.Order))
	for _, name := range st.Order {
		if !loader.Session().IsLoaded(name) {
			pending = append(pending, name)
		}
	}
	return writeLines(out,
		"loaded: "+orDash(loaded),
		"not loaded: "+orDash(pending),
		"commands: "+orDash(host.Commands()),
	)
}
