package luahost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/scan"
	"github.com/dshills/quiver/internal/plugin/trigger"
	"github.com/dshills/quiver/internal/runtime"
	"github.com/dshills/quiver/internal/state"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func newHost(t *testing.T) *Host {
	t.Helper()
	h, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func global(h *Host, name string) glua.LValue {
	return h.State().GetGlobal(name)
}

type extension struct {
	name    string
	depends []string
	lazy    plugin.Lazy
	files   map[string]string
}

func compile(t *testing.T, exts ...extension) *state.State {
	t.Helper()
	root := t.TempDir()
	cls := scan.New(scan.DefaultExt)
	st := &state.State{Schema: state.Schema, Plugins: map[string]state.Plugin{}}
	var records []plugin.Record
	for _, e := range exts {
		dir := filepath.Join(root, e.name)
		writeFiles(t, dir, e.files)
		m, err := cls.Classify(dir)
		require.NoError(t, err)
		records = append(records, plugin.Record{Name: e.name, Depends: e.depends, Lazy: e.lazy})
		st.Plugins[e.name] = state.Plugin{
			Path:        dir,
			Depends:     e.depends,
			Lazy:        e.lazy,
			Sources:     m.General,
			BootSources: m.Boot,
			FtSources:   m.Ft,
		}
		st.Order = append(st.Order, e.name)
	}
	st.Triggers = trigger.Build(records)
	return st
}

func TestHostModule(t *testing.T) {
	h := newHost(t)
	err := h.Execute(`
		local host = require("host")
		host.command("Greet", function(cmd)
			greeted = cmd.args
			bang = cmd.bang
			count = cmd.count
		end)
		host.on("Ping", function(ev) pinged = ev.event end)
		host.notify("hello")
	`)
	require.NoError(t, err)

	require.NoError(t, h.ExecCommand("3 Greet! world"))
	assert.Equal(t, glua.LString("world"), global(h, "greeted"))
	assert.Equal(t, glua.LTrue, global(h, "bang"))
	assert.Equal(t, glua.LNumber(3), global(h, "count"))

	require.NoError(t, h.Emit("Ping"))
	assert.Equal(t, glua.LString("Ping"), global(h, "pinged"))
	assert.Equal(t, []string{"hello"}, h.Messages())
	assert.Equal(t, []string{"Greet"}, h.Commands())
}

func TestHostExecFromLua(t *testing.T) {
	h := newHost(t)
	require.NoError(t, h.Execute(`
		local host = require("host")
		host.command("Inner", function(cmd) inner = cmd.args end)
		host.command("Outer", function() host.exec("Inner from-outer") end)
	`))
	require.NoError(t, h.ExecCommand("Outer"))
	assert.Equal(t, glua.LString("from-outer"), global(h, "inner"))

	err := h.Execute(`require("host").exec("Missing")`)
	assert.ErrorContains(t, err, "not an editor command: Missing")
}

func TestHostNotifyCallback(t *testing.T) {
	var got []string
	h, err := New(WithNotify(func(msg string) { got = append(got, msg) }))
	require.NoError(t, err)
	defer h.Close()

	h.Notify("one")
	require.NoError(t, h.Execute(`require("host").notify("two")`))
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestHostRuntimePath(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"lua/greeter/init.lua": `return { name = "greeter" }`,
		"lua/util.lua":         `return { answer = 42 }`,
	})
	h := newHost(t)
	require.NoError(t, h.AddRuntimePath(dir))
	require.NoError(t, h.Execute(`
		answer = require("util").answer
		name = require("greeter").name
	`))
	assert.Equal(t, glua.LNumber(42), global(h, "answer"))
	assert.Equal(t, glua.LString("greeter"), global(h, "name"))
}

func TestHostUnknownCommand(t *testing.T) {
	h := newHost(t)
	assert.ErrorContains(t, h.ExecCommand("Nope"), "not an editor command")
	assert.ErrorIs(t, h.ExecCommand(""), runtime.ErrInvalidCommandLine)
}

func TestHostLoaderCommandTrigger(t *testing.T) {
	st := compile(t,
		extension{
			name:  "lib",
			lazy:  plugin.Lazy{OnEvent: []string{"Never"}},
			files: map[string]string{"lua/lib.lua": `return { prefix = "built:" }`},
		},
		extension{
			name:    "builder",
			depends: []string{"lib"},
			lazy:    plugin.Lazy{OnCmd: []string{"Build"}},
			files: map[string]string{
				"plugin/builder.lua": `
					local host = require("host")
					local lib = require("lib")
					host.command("Build", function(cmd)
						result = lib.prefix .. cmd.args .. (cmd.bang and "!" or "")
					end)
				`,
			},
		},
	)
	h := newHost(t)
	loader := runtime.NewLoader(st, h)
	h.Attach(loader)
	require.NoError(t, loader.Start())
	assert.Equal(t, []string{"Build"}, h.Commands())

	require.NoError(t, h.ExecCommand("Build! all"))
	assert.Equal(t, glua.LString("built:all!"), global(h, "result"))
	assert.Equal(t, []string{"builder", "lib"}, loader.Session().Loaded())
}

func TestHostLoaderReentry(t *testing.T) {
	st := compile(t, extension{
		name:  "broken",
		lazy:  plugin.Lazy{OnCmd: []string{"Broken"}},
		files: map[string]string{"plugin/broken.lua": `loaded = true`},
	})
	h := newHost(t)
	loader := runtime.NewLoader(st, h)
	h.Attach(loader)
	require.NoError(t, loader.Start())

	err := h.ExecCommand("Broken")
	assert.ErrorIs(t, err, runtime.ErrCommandReentry)
	assert.Equal(t, []string{"command not found after load: Broken"}, h.Messages())
	assert.Equal(t, glua.LTrue, global(h, "loaded"))
}

func TestHostEmitAndFiletype(t *testing.T) {
	st := compile(t,
		extension{
			name: "evented",
			lazy: plugin.Lazy{OnEvent: []string{"Enter"}},
			files: map[string]string{
				"plugin/evented.lua": `
					require("host").on("FileType", function(ev) seen_ft = ev.match end)
					require("host").on("Enter", function() enter_listener = true end)
				`,
				"ftplugin/go.lua": `ft_sourced = (ft_sourced or 0) + 1`,
			},
		},
	)
	h := newHost(t)
	loader := runtime.NewLoader(st, h)
	h.Attach(loader)
	require.NoError(t, loader.Start())

	require.NoError(t, h.Emit("Enter"))
	assert.True(t, loader.Session().IsLoaded("evented"))
	assert.Equal(t, glua.LTrue, global(h, "enter_listener"))

	require.NoError(t, h.EnterFiletype("go"))
	require.NoError(t, h.EnterFiletype("go"))
	assert.Equal(t, glua.LNumber(2), global(h, "ft_sourced"))
	assert.Equal(t, glua.LString("go"), global(h, "seen_ft"))

	require.NoError(t, h.EnterFiletype("rust"))
	assert.Equal(t, glua.LString("rust"), global(h, "seen_ft"))
}
