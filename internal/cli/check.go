package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/dshills/quiver/internal/state"
)

// runCheck reports on the environment. Problems are reported, not returned.
func (r *runner) runCheck(cmd *cobra.Command, args []string) error {
	lines := []string{r.checkGit(cmd), r.checkDataDir(), checkState(r.settings.Dir)}
	if r.settings.EmitsVim() {
		lines = append(lines, checkVim(r.settings.Dir))
	}
	return writeLines(cmd.OutOrStdout(), lines...)
}

func (r *runner) checkGit(cmd *cobra.Command) string {
	res := r.git().Version(cmd.Context())
	if !res.OK() {
		return "git: missing"
	}
	return "git: ok (" + res.Stdout + ")"
}

func (r *runner) checkDataDir() string {
	dir := r.settings.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Sprintf("data dir: failed (%v)", err)
	}
	probe, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return fmt.Sprintf("data dir: not writable (%v)", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return "data dir: ok (" + dir + ")"
}

// checkState probes the artifact schema without decoding the body.
func checkState(dir string) string {
	data, err := os.ReadFile(state.Path(dir))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "state.json: missing"
	case err != nil:
		return fmt.Sprintf("state.json: unreadable (%v)", err)
	case !gjson.ValidBytes(data):
		return "state.json: invalid"
	}
	schema := gjson.GetBytes(data, "schema")
	if schema.Int() != state.Schema {
		return fmt.Sprintf("state.json: schema mismatch (got %s, want %d)", schema.Raw, state.Schema)
	}
	version := gjson.GetBytes(data, "meta.quiver_version").String()
	count := len(gjson.GetBytes(data, "plugins").Map())
	return fmt.Sprintf("state.json: ok (%d plugins, quiver %s)", count, version)
}

func checkVim(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, state.VimFile))
	if err != nil {
		return "state.vim: missing"
	}
	if !bytes.Contains(data, []byte("let s:state")) {
		return "state.vim: invalid"
	}
	return "state.vim: ok"
}
