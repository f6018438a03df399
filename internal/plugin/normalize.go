package plugin

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Env is the path-resolution capability the Normalizer depends on.
type Env interface {
	// HomeDir returns the current user's home directory.
	HomeDir() (string, error)

	// Abs expands environment references and returns an absolute path.
	Abs(path string) (string, error)
}

// OSEnv resolves paths against the process environment. Relative paths are
// resolved against BaseDir, or the working directory when BaseDir is empty.
type OSEnv struct {
	BaseDir string
}

// HomeDir implements Env.
func (e OSEnv) HomeDir() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}
	if home := os.Getenv("USERPROFILE"); home != "" {
		return home, nil
	}
	return "", fmt.Errorf("HOME is not set for ~ expansion")
}

// Abs implements Env.
func (e OSEnv) Abs(path string) (string, error) {
	expanded := os.ExpandEnv(path)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	if e.BaseDir != "" {
		return filepath.Join(e.BaseDir, expanded), nil
	}
	return filepath.Abs(expanded)
}

// Normalizer turns raw declarations into canonical records.
type Normalizer struct {
	env Env
}

// NewNormalizer creates a Normalizer. A nil env uses OSEnv{}.
func NewNormalizer(env Env) *Normalizer {
	if env == nil {
		env = OSEnv{}
	}
	return &Normalizer{env: env}
}

// NormalizeAll normalizes a batch of declarations. Names must be unique
// across the whole batch and every development record needs an override path.
func (n *Normalizer) NormalizeAll(decls []Declaration) ([]Record, error) {
	records := make([]Record, 0, len(decls))
	for i := range decls {
		rec, err := n.Normalize(decls[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, rec.Name)
		}
		seen[rec.Name] = true
	}

	for _, rec := range records {
		if rec.Dev.Enable && rec.Dev.OverridePath == "" {
			return nil, fmt.Errorf("%w for %s", ErrOverrideRequired, rec.Name)
		}
	}
	return records, nil
}

// Normalize converts one declaration into a record.
func (n *Normalizer) Normalize(d Declaration) (Record, error) {
	rawRepo := strings.TrimSpace(d.Repo)
	rawName := strings.TrimSpace(d.Name)
	if rawRepo == "" {
		return Record{}, fieldErr(rawName, "repo", ErrRepoRequired)
	}
	label := rawName
	if label == "" {
		label = rawRepo
	}
	if d.legacyHooks {
		return Record{}, fmt.Errorf("%w. use hookAdd/hookSource for %s", ErrLegacyHooks, label)
	}

	hookAdd, err := n.hookRef(d.HookAdd)
	if err != nil {
		return Record{}, fieldErr(label, "hookAdd", err)
	}
	hookSource, err := n.hookRef(d.HookSource)
	if err != nil {
		return Record{}, fieldErr(label, "hookSource", err)
	}

	rev := strings.TrimSpace(d.Rev)
	nameIsDefault := rawName == "" || rawName == rawRepo
	name := rawName
	devEnable := d.Dev.Enable

	overridePath := strings.TrimSpace(d.Dev.OverridePath)
	if overridePath != "" {
		if overridePath, err = n.resolveLocal(overridePath); err != nil {
			return Record{}, fieldErr(label, "dev.overridePath", err)
		}
	}

	var repo string
	if IsLocalPath(rawRepo) {
		resolved, err := n.resolveLocal(rawRepo)
		if err != nil {
			return Record{}, fieldErr(label, "repo", err)
		}
		if overridePath != "" && overridePath != resolved {
			return Record{}, fieldErr(label, "dev.overridePath", fmt.Errorf("%w: %s", ErrOverrideConflict, rawRepo))
		}
		devEnable = true
		overridePath = resolved
		repo = resolved
		if nameIsDefault {
			name = autoName(resolved, rev)
		}
	} else {
		if repo, err = NormalizeRemote(rawRepo); err != nil {
			return Record{}, fieldErr(label, "repo", err)
		}
		if name == "" {
			name = repo
		}
	}

	if name == "" {
		return Record{}, fieldErr(label, "name", ErrNameRequired)
	}

	return Record{
		Name:       name,
		Repo:       repo,
		Rev:        rev,
		Rtp:        strings.TrimSpace(d.Rtp),
		Depends:    normalizeList(d.Depends),
		HookAdd:    hookAdd,
		HookSource: hookSource,
		PostUpdate: d.PostUpdate,
		Lazy: Lazy{
			OnEvent: normalizeList(d.Lazy.OnEvent),
			OnFt:    normalizeList(d.Lazy.OnFt),
			OnCmd:   normalizeList(d.Lazy.OnCmd),
		},
		Dev: Dev{
			Enable:       devEnable,
			OverridePath: overridePath,
		},
	}, nil
}

// hookRef classifies a hook value as a path or inline code.
func (n *Normalizer) hookRef(value string) (HookRef, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return HookRef{}, nil
	}
	if !strings.HasPrefix(trimmed, "~") && !isAbsPath(trimmed) {
		return HookRef{Inline: value}, nil
	}
	expanded, err := n.expandHome(trimmed)
	if err != nil {
		return HookRef{}, err
	}
	if !isAbsPath(expanded) {
		return HookRef{}, ErrHookPath
	}
	return HookRef{Path: expanded}, nil
}

func (n *Normalizer) expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := n.env.HomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return home + path[1:], nil
	}
	return "", ErrHomeShorthand
}

// resolveLocal turns a local locator into an absolute path without trailing
// separators.
func (n *Normalizer) resolveLocal(value string) (string, error) {
	path := strings.TrimSpace(value)
	if path == "" {
		return "", fmt.Errorf("%w: local path is empty", ErrLocalPath)
	}
	if strings.HasPrefix(path, "file://") {
		u, err := url.Parse(path)
		if err != nil || (u.Host != "" && u.Host != "localhost") || u.Path == "" {
			return "", fmt.Errorf("%w: invalid file URL: %s", ErrLocalPath, value)
		}
		path = filepath.FromSlash(u.Path)
	}
	path, err := n.expandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := n.env.Abs(path)
	if err != nil || abs == "" {
		return "", fmt.Errorf("%w: %s", ErrLocalPath, value)
	}
	if trimmed := strings.TrimRight(abs, `/\`); trimmed != "" {
		return trimmed, nil
	}
	return abs, nil
}

func isAbsPath(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/") || drivePath.MatchString(p)
}

func autoName(path, rev string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimRight(path, `/\`), `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	if rev != "" {
		base = base + "-" + rev
	}
	return sanitize(base)
}

// normalizeList trims entries, drops empty ones, deduplicates and sorts.
func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
