package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/quiver/internal/app"
	"github.com/dshills/quiver/internal/install"
	"github.com/dshills/quiver/internal/state"
)

const testConfig = `
local q = require("quiver")
function configure(ctx)
	return {
		q.ensure("./plugins/core", { name = "core" }),
		q.lazy("./plugins/ui", { name = "ui", depends = { "core" }, on_cmd = { "Build" }, on_ft = { "go" } }),
	}
end
`

type workspace struct {
	root    string
	dataDir string
	env     []string
}

func newWorkspace(t *testing.T, config string) *workspace {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"init.lua":                     config,
		"plugins/core/plugin/core.lua": `core_loaded = true`,
		"plugins/ui/plugin/ui.lua": `local host = require("host")
host.command("Build", function(inv) host.notify("built " .. inv.args) end)`,
		"plugins/ui/ftplugin/go.lua": `require("host").notify("go ftplugin")`,
	}
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	ws := &workspace{root: root, dataDir: filepath.Join(root, "data")}
	ws.env = []string{
		"QUIVER_DIR=" + ws.dataDir,
		"QUIVER_CONFIG=" + filepath.Join(root, "init.lua"),
		"QUIVER_LOG_LEVEL=error",
		"XDG_CONFIG_HOME=" + filepath.Join(root, "xdg"),
	}
	return ws
}

// run executes the command tree and returns stdout.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"},
		WithEnviron(func() []string { return ws.env }),
		WithHomeDir(ws.root),
	)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	out, err := ws.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "quiver 1.2.3 (commit abc, built today)\n", out)
}

func TestCompile(t *testing.T) {
	ws := newWorkspace(t, testConfig)

	out, err := ws.run(t, "compile", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "order: core, ui")
	assert.NoFileExists(t, state.Path(ws.dataDir))

	out, err = ws.run(t, "compile")
	require.NoError(t, err)
	assert.Equal(t, "compiled 2 plugins -> "+state.Path(ws.dataDir)+"\n", out)

	st, err := state.Read(ws.dataDir)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", st.Meta.Version)
	assert.Equal(t, []string{"core", "ui"}, st.Order)
}

func TestCompileEmitVimFromEnv(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	ws.env = append(ws.env, "QUIVER_EMIT=vim")
	_, err := ws.run(t, "compile")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws.dataDir, state.VimFile))
}

func TestCompileFailure(t *testing.T) {
	ws := newWorkspace(t, `x = 1`)
	_, err := ws.run(t, "compile")
	require.Error(t, err)
	assert.Equal(t, app.ExitError, app.ExitCode(err))
	assert.Contains(t, err.Error(), "configure function is missing")
	assert.NoFileExists(t, state.Path(ws.dataDir))
}

func TestUsageErrors(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	tests := [][]string{
		{"compile", "extra"},
		{"compile", "--no-such-flag"},
		{"--log-level", "loud", "compile"},
		{"update", "--rev", "v1"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := ws.run(t, args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, app.ErrUsage)
			assert.Equal(t, app.ExitUsage, app.ExitCode(err))
		})
	}
}

func TestSimulate(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	_, err := ws.run(t, "simulate")
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrNoState)

	_, err = ws.run(t, "compile")
	require.NoError(t, err)

	out, err := ws.run(t, "simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded: core\n")
	assert.Contains(t, out, "not loaded: ui\n")
	assert.Contains(t, out, "commands: Build\n")

	out, err = ws.run(t, "simulate", "--command", "Build release", "--filetype", "go")
	require.NoError(t, err)
	assert.Contains(t, out, "notify: built release\n")
	assert.Contains(t, out, "loaded: core, ui\n")
	assert.Contains(t, out, "not loaded: -\n")

	out, err = ws.run(t, "simulate", "--filetype", "go")
	require.NoError(t, err)
	assert.Contains(t, out, "notify: go ftplugin\n")
}

func TestCheck(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	out, err := ws.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "data dir: ok")
	assert.Contains(t, out, "state.json: missing")

	_, err = ws.run(t, "compile")
	require.NoError(t, err)
	out, err = ws.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "state.json: ok (2 plugins, quiver 1.2.3)")

	require.NoError(t, os.WriteFile(state.Path(ws.dataDir), []byte(`{"schema": 99}`), 0o644))
	out, err = ws.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "state.json: schema mismatch (got 99, want 1)")
}

func TestDevOnlyManagement(t *testing.T) {
	ws := newWorkspace(t, testConfig)

	out, err := ws.run(t, "status")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"missing: -",
		"extra: -",
		"dirty: -",
		"lock mismatch: -",
		"dev override: core, ui",
	}, "\n")+"\n", out)

	out, err = ws.run(t, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "update skipped (dev override): core\n")
	assert.Contains(t, out, "update skipped (dev override): ui\n")

	out, err = ws.run(t, "lock")
	require.NoError(t, err)
	assert.Contains(t, out, "locked 0 plugins")
	lf, err := state.ReadLockfile(ws.dataDir)
	require.NoError(t, err)
	assert.Empty(t, lf.Plugins)

	out, err = ws.run(t, "clean")
	require.NoError(t, err)
	assert.Equal(t, "clean skipped (no extra repos)\n", out)

	out, err = ws.run(t, "sync")
	require.NoError(t, err)
	assert.Equal(t, "sync finished\n", out)
	assert.FileExists(t, state.Path(ws.dataDir))
}

func TestSyncLockedWithoutLockfile(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	_, err := ws.run(t, "sync", "--locked")
	assert.ErrorIs(t, err, install.ErrLockMissing)
}

func TestCleanRemovesStrayCheckouts(t *testing.T) {
	ws := newWorkspace(t, testConfig)
	stray := filepath.Join(ws.dataDir, "repos", "owner", "gone")
	require.NoError(t, os.MkdirAll(filepath.Join(stray, ".git"), 0o755))

	out, err := ws.run(t, "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "would remove 1 repos:")
	assert.DirExists(t, stray)

	out, err = ws.run(t, "clean", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 repos\n", out)
	assert.NoDirExists(t, stray)
}

func TestStatusReportsMissingDependency(t *testing.T) {
	ws := newWorkspace(t, `
function configure()
	return {
		{ repo = "https://github.com/owner/lib" },
		{ repo = "./plugins/ui", name = "ui", depends = { "https://github.com/owner/lib" } },
	}
end`)
	out, err := ws.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "missing: https://github.com/owner/lib\n")
	assert.Contains(t, out, "  https://github.com/owner/lib is required by: ui\n")
}
