package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/quiver/internal/plugin"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("-- "+f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestClassify(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"ftdetect/go.lua",
		"plugin/z.lua",
		"plugin/a.lua",
		"plugin/sub/b.lua",
		"plugin/readme.md",
		"autoload/util.lua",
		"after/plugin/late.lua",
		"ftplugin/go.lua",
		"ftplugin/rust.lua",
		"ftplugin/nested/ignored.lua",
		"after/ftplugin/go.lua",
		"indent/go.lua",
		"syntax/go.lua",
		"after/syntax/go.lua",
		"lua/mod.lua",
	)

	got, err := New(".lua").Classify(root)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := Manifest{
		Boot: []string{"ftdetect/go.lua"},
		General: []string{
			"autoload/util.lua",
			"plugin/a.lua",
			"plugin/sub/b.lua",
			"plugin/z.lua",
			"after/plugin/late.lua",
		},
		Ft: FtSources{
			Ftplugin: map[string][]string{
				"go":   {"ftplugin/go.lua", "after/ftplugin/go.lua"},
				"rust": {"ftplugin/rust.lua"},
			},
			Indent: map[string][]string{"go": {"indent/go.lua"}},
			Syntax: map[string][]string{"go": {"syntax/go.lua", "after/syntax/go.lua"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}

	wantFt := []string{"ftplugin/go.lua", "after/ftplugin/go.lua", "indent/go.lua", "syntax/go.lua", "after/syntax/go.lua"}
	if diff := cmp.Diff(wantFt, got.Ft.ForFiletype("go")); diff != "" {
		t.Errorf("ForFiletype(go) mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_EmptyRoot(t *testing.T) {
	got, err := New("").Classify(t.TempDir())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Boot == nil || got.General == nil || got.Ft.Ftplugin == nil {
		t.Errorf("Classify() = %+v, want empty non-nil lists", got)
	}
	if len(got.Boot)+len(got.General) != 0 {
		t.Errorf("Classify() = %+v, want no files", got)
	}
}

func TestClassify_MissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := New(".lua").Classify(missing)
	if !errors.Is(err, ErrMissingDir) {
		t.Errorf("Classify() error = %v, want ErrMissingDir", err)
	}
}

func TestClassify_VimExt(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "plugin/a.vim", "plugin/b.lua")
	got, err := New("vim").Classify(root)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if diff := cmp.Diff([]string{"plugin/a.vim"}, got.General); diff != "" {
		t.Errorf("General mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyRecord_Rtp(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, "vim/plugin/x.lua", "plugin/outside.lua")
	rec := &plugin.Record{
		Name: "x",
		Rtp:  "vim",
		Dev:  plugin.Dev{Enable: true, OverridePath: base},
	}
	got, err := New(".lua").ClassifyRecord(rec, "/unused")
	if err != nil {
		t.Fatalf("ClassifyRecord() error = %v", err)
	}
	if diff := cmp.Diff([]string{"plugin/x.lua"}, got.General); diff != "" {
		t.Errorf("General mismatch (-want +got):\n%s", diff)
	}
}

func TestWalk_Restartable(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.lua", "d/b.lua", "d/e/c.lua")
	seq := Walk(root)

	collect := func() []string {
		var out []string
		for p, err := range seq {
			if err != nil {
				t.Fatalf("Walk() error = %v", err)
			}
			out = append(out, p)
		}
		return out
	}
	first := collect()
	second := collect()
	want := []string{"a.lua", "d/b.lua", "d/e/c.lua"}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("first walk mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second walk mismatch (-want +got):\n%s", diff)
	}
}

func TestWalk_EarlyStop(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.lua", "b.lua", "c.lua")
	n := 0
	for range Walk(root) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterations = %d, want 1", n)
	}
}

func TestWalk_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	writeFiles(t, target, "x.lua")
	writeFiles(t, root, "real.lua")
	if err := os.Symlink(target, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink: %v", err)
	}
	var got []string
	for p, err := range Walk(root) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, p)
	}
	if diff := cmp.Diff([]string{"real.lua"}, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}
}

func TestWalk_FollowsSymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeFiles(t, target, "a.lua", "sub/b.lua")
	link := filepath.Join(t.TempDir(), "plugin")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink: %v", err)
	}
	var got []string
	for p, err := range Walk(link) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, p)
	}
	if diff := cmp.Diff([]string{"a.lua", "sub/b.lua"}, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_SymlinkedRoleDirectory(t *testing.T) {
	shared := t.TempDir()
	writeFiles(t, shared, "a.lua")
	root := t.TempDir()
	writeFiles(t, root, "ftplugin/go.lua")
	if err := os.Symlink(shared, filepath.Join(root, "plugin")); err != nil {
		t.Skipf("symlink: %v", err)
	}
	if err := os.Symlink(shared, filepath.Join(root, "ftdetect")); err != nil {
		t.Skipf("symlink: %v", err)
	}

	got, err := New(".lua").Classify(root)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if diff := cmp.Diff([]string{"plugin/a.lua"}, got.General); diff != "" {
		t.Errorf("General mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ftdetect/a.lua"}, got.Boot); diff != "" {
		t.Errorf("Boot mismatch (-want +got):\n%s", diff)
	}
}
