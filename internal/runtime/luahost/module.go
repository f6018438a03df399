package luahost

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/quiver/internal/runtime"
)

func (h *Host) openModule(L *glua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]glua.LGFunction{
		"command": h.luaCommand,
		"exec":    h.luaExec,
		"on":      h.luaOn,
		"notify":  h.luaNotify,
	})
	L.Push(mod)
	return 1
}

// host.command(name, fn)
func (h *Host) luaCommand(L *glua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	_ = h.DefineCommand(name, func(inv runtime.Invocation) error {
		_, err := h.state.CallFunction(fn, h.bridge.ToLuaValue(invocationTable(inv)))
		return err
	})
	return 0
}

// host.exec(line)
func (h *Host) luaExec(L *glua.LState) int {
	line := L.CheckString(1)
	if err := h.ExecCommand(line); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// host.on(event, fn)
func (h *Host) luaOn(L *glua.LState) int {
	event := L.CheckString(1)
	fn := L.CheckFunction(2)
	h.listeners[event] = append(h.listeners[event], fn)
	return 0
}

// host.notify(msg)
func (h *Host) luaNotify(L *glua.LState) int {
	h.Notify(L.CheckString(1))
	return 0
}

func invocationTable(inv runtime.Invocation) map[string]any {
	return map[string]any{
		"name":     inv.Name,
		"args":     inv.Args,
		"bang":     inv.Bang,
		"range":    inv.Range,
		"count":    inv.Count,
		"mods":     inv.Mods,
		"register": inv.Register,
	}
}
