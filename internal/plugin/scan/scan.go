// Package scan classifies the script files an extension contributes.
//
// Files are grouped by runtime role:
//
//	ftdetect/                          boot sources, sourced for every extension
//	autoload/ plugin/ after/plugin/    general sources, sourced on load
//	ftplugin/ indent/ syntax/          filetype sources, keyed by file stem
//	after/ftplugin/ after/indent/ after/syntax/
//
// Boot and general roles are walked recursively. Filetype roles only look
// at the files directly inside the role directory.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/quiver/internal/plugin"
)

// DefaultExt is the script extension collected when none is configured.
const DefaultExt = ".lua"

// ErrMissingDir is returned when an extension's runtime root is not a directory.
var ErrMissingDir = errors.New("plugin directory missing")

var (
	bootRoles    = []string{"ftdetect"}
	generalRoles = []string{"autoload", "plugin", "after/plugin"}
)

// FtSources groups filetype-scoped files by category and filetype.
type FtSources struct {
	Ftplugin map[string][]string `json:"ftplugin"`
	Indent   map[string][]string `json:"indent"`
	Syntax   map[string][]string `json:"syntax"`
}

// ForFiletype returns every file for ft in category order.
func (f FtSources) ForFiletype(ft string) []string {
	var out []string
	out = append(out, f.Ftplugin[ft]...)
	out = append(out, f.Indent[ft]...)
	out = append(out, f.Syntax[ft]...)
	return out
}

// Manifest lists the files of one extension, relative to its runtime root
// with forward slashes.
type Manifest struct {
	Boot    []string
	General []string
	Ft      FtSources
}

// Classifier collects files with one script extension.
type Classifier struct {
	ext string
}

// New creates a Classifier for files ending in ext. An empty ext uses DefaultExt.
func New(ext string) *Classifier {
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Classifier{ext: ext}
}

// ClassifyRecord classifies the runtime root of rec.
func (c *Classifier) ClassifyRecord(rec *plugin.Record, dataDir string) (Manifest, error) {
	return c.Classify(rec.RuntimeDir(dataDir))
}

// Classify scans root. Missing role directories contribute nothing; a
// missing root fails with ErrMissingDir.
func (c *Classifier) Classify(root string) (Manifest, error) {
	if !isDir(root) {
		return Manifest{}, fmt.Errorf("%w: %s", ErrMissingDir, root)
	}

	m := Manifest{
		Boot:    []string{},
		General: []string{},
		Ft: FtSources{
			Ftplugin: map[string][]string{},
			Indent:   map[string][]string{},
			Syntax:   map[string][]string{},
		},
	}

	var err error
	if m.Boot, err = c.collectRoles(root, bootRoles); err != nil {
		return Manifest{}, err
	}
	if m.General, err = c.collectRoles(root, generalRoles); err != nil {
		return Manifest{}, err
	}

	categories := []struct {
		role   string
		target map[string][]string
	}{
		{"ftplugin", m.Ft.Ftplugin},
		{"after/ftplugin", m.Ft.Ftplugin},
		{"indent", m.Ft.Indent},
		{"after/indent", m.Ft.Indent},
		{"syntax", m.Ft.Syntax},
		{"after/syntax", m.Ft.Syntax},
	}
	for _, cat := range categories {
		if err := c.collectFiletype(root, cat.role, cat.target); err != nil {
			return Manifest{}, err
		}
	}
	return m, nil
}

// collectRoles concatenates the sorted recursive listings of each role.
func (c *Classifier) collectRoles(root string, roles []string) ([]string, error) {
	out := []string{}
	for _, role := range roles {
		dir := filepath.Join(root, filepath.FromSlash(role))
		if !isDir(dir) {
			continue
		}
		var files []string
		for rel, err := range Walk(dir) {
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", dir, err)
			}
			if strings.HasSuffix(rel, c.ext) {
				files = append(files, role+"/"+rel)
			}
		}
		slices.Sort(files)
		for _, f := range files {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// collectFiletype appends the direct children of role to target, keyed by stem.
func (c *Classifier) collectFiletype(root, role string, target map[string][]string) error {
	dir := filepath.Join(root, filepath.FromSlash(role))
	if !isDir(dir) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), c.ext) {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	for _, name := range files {
		stem := strings.TrimSuffix(name, c.ext)
		target[stem] = append(target[stem], role+"/"+name)
	}
	return nil
}

// Walk yields the regular files under root depth-first, as slash-separated
// paths relative to root. root itself may be a symlink; symlinks below it
// are not followed. Each range over the returned sequence walks the tree
// again.
func Walk(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			yield("", err)
			return
		}
		stop := errors.New("stop")
		err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(resolved, path)
			if err != nil {
				return err
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return stop
			}
			return nil
		})
		if err != nil && err != stop {
			yield("", err)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
