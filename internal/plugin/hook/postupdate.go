package hook

import (
	"context"
	"fmt"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/quiver/internal/plugin/lua"
)

// PostUpdate runs post-update hook code after an install or update.
type PostUpdate struct {
	timeout time.Duration
}

// NewPostUpdate creates a runner. A zero timeout uses lua.DefaultTimeout.
func NewPostUpdate(timeout time.Duration) *PostUpdate {
	if timeout <= 0 {
		timeout = lua.DefaultTimeout
	}
	return &PostUpdate{timeout: timeout}
}

// Run executes code in a fresh sandbox with a global ctx holding the
// extension name and checkout path. Empty code is a no-op.
func (p *PostUpdate) Run(ctx context.Context, code, name, path string) error {
	if code == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := lua.NewState(
		lua.WithTimeout(p.timeout),
		lua.WithCapabilities(lua.CapabilityEnv),
	)
	if err != nil {
		return err
	}
	defer state.Close()

	L := state.LuaState()
	tbl := L.NewTable()
	tbl.RawSetString("name", glua.LString(name))
	tbl.RawSetString("path", glua.LString(path))
	state.SetGlobal("ctx", tbl)

	if err := state.DoString(code); err != nil {
		return fmt.Errorf("post-update hook for %s: %w", name, err)
	}
	return nil
}
