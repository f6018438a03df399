package hook

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/quiver/internal/plugin/lua"
)

func TestPostUpdateContext(t *testing.T) {
	p := NewPostUpdate(0)
	code := `assert(ctx.name == "core", "name") assert(ctx.path == "/data/core", "path")`
	if err := p.Run(context.Background(), code, "core", "/data/core"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := p.Run(context.Background(), "", "core", "/data/core"); err != nil {
		t.Errorf("Run(empty) error = %v", err)
	}
}

func TestPostUpdateFailure(t *testing.T) {
	err := NewPostUpdate(0).Run(context.Background(), `error("build failed")`, "core", "/data/core")
	if err == nil || !strings.Contains(err.Error(), "core") || !strings.Contains(err.Error(), "build failed") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestPostUpdateTimeout(t *testing.T) {
	err := NewPostUpdate(50*time.Millisecond).Run(context.Background(), `while true do end`, "spin", "/tmp")
	if !errors.Is(err, lua.ErrExecutionTimeout) {
		t.Errorf("Run() error = %v, want ErrExecutionTimeout", err)
	}
}

func TestPostUpdateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPostUpdate(0).Run(ctx, `x = 1`, "core", "/tmp")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestPostUpdateIsolated(t *testing.T) {
	p := NewPostUpdate(0)
	if err := p.Run(context.Background(), `leaked = true`, "a", "/a"); err != nil {
		t.Fatal(err)
	}
	if err := p.Run(context.Background(), `assert(leaked == nil, "global leaked")`, "b", "/b"); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
