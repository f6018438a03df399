package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func start(t *testing.T, w *Watcher) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Run did not return")
		}
	}
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestWatchDeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "init.lua")
	b := filepath.Join(dir, "hooks.lua")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))

	events := make(chan Event, 4)
	w, err := New(func(ev Event) { events <- ev }, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Watch(a))
	require.NoError(t, w.Watch(b))
	stop := start(t, w)
	defer stop()

	require.NoError(t, os.WriteFile(a, []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("z"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), nil, 0o644))

	ev := waitEvent(t, events)
	assert.Equal(t, []string{b, a}, ev.Paths)
}

func TestWatchIgnoresUnwatched(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "init.lua")

	events := make(chan Event, 4)
	w, err := New(func(ev Event) { events <- ev }, WithDebounce(0))
	require.NoError(t, err)
	require.NoError(t, w.Watch(a))
	require.NoError(t, w.Unwatch(a))
	require.NoError(t, w.Watch(filepath.Join(dir, "other.lua")))
	stop := start(t, w)

	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))
	select {
	case ev := <-events:
		t.Errorf("unexpected event %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
	stop()
}

func TestSet(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Close()

	a := filepath.Join(dir, "a.lua")
	b := filepath.Join(dir, "b.lua")
	require.NoError(t, w.Set([]string{a, b}))
	assert.Equal(t, []string{a, b}, w.WatchedFiles())
	require.NoError(t, w.Set([]string{b}))
	assert.Equal(t, []string{b}, w.WatchedFiles())
}

func TestClosed(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Watch(filepath.Join(t.TempDir(), "x")), ErrWatcherClosed)
}

func TestWatchMissingDirectory(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing", "init.lua")))
	assert.Empty(t, w.WatchedFiles())
}
