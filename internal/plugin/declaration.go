package plugin

import (
	"fmt"
	"strings"
)

// Lazy holds the lazy-activation lists of an extension.
type Lazy struct {
	OnEvent []string `json:"on_event"`
	OnFt    []string `json:"on_ft"`
	OnCmd   []string `json:"on_cmd"`
}

// IsEmpty reports whether no lazy trigger is declared.
func (l Lazy) IsEmpty() bool {
	return len(l.OnEvent) == 0 && len(l.OnFt) == 0 && len(l.OnCmd) == 0
}

// DevDeclaration is the raw development override of a declaration.
type DevDeclaration struct {
	Enable       bool
	OverridePath string
}

// Declaration is one raw extension entry as returned by a configuration module.
type Declaration struct {
	Repo       string
	Name       string
	Rev        string
	Rtp        string
	Depends    []string
	HookAdd    string
	HookSource string
	PostUpdate string
	Lazy       Lazy
	Dev        DevDeclaration

	// legacyHooks is set when hooks.hook_add or hooks.hook_source was present.
	legacyHooks bool
}

// label returns the best available identifier for error messages.
func (d *Declaration) label() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	return strings.TrimSpace(d.Repo)
}

// DecodeDeclaration converts a generic map (as produced by Lua tables, TOML,
// YAML or JSON documents) into a Declaration.
func DecodeDeclaration(raw map[string]any) (Declaration, error) {
	var d Declaration
	var err error

	if d.Repo, err = optString(raw, "repo"); err != nil {
		return d, err
	}
	if d.Name, err = optString(raw, "name"); err != nil {
		return d, err
	}
	label := d.label()
	wrap := func(err error) error {
		if fe, ok := err.(*FieldError); ok && fe.Plugin == "" {
			fe.Plugin = label
		}
		return err
	}

	if d.Rev, err = optString(raw, "rev"); err != nil {
		return d, wrap(err)
	}
	if d.Rtp, err = optString(raw, "rtp"); err != nil {
		return d, wrap(err)
	}
	if d.Depends, err = optStrings(raw, "depends"); err != nil {
		return d, wrap(err)
	}
	if d.HookAdd, err = optString(raw, "hookAdd"); err != nil {
		return d, wrap(err)
	}
	if d.HookSource, err = optString(raw, "hookSource"); err != nil {
		return d, wrap(err)
	}

	hooks, err := optMap(raw, "hooks")
	if err != nil {
		return d, wrap(err)
	}
	if hooks != nil {
		_, hasAdd := hooks["hook_add"]
		_, hasSource := hooks["hook_source"]
		d.legacyHooks = hasAdd || hasSource
		if d.PostUpdate, err = optString(hooks, "hook_post_update"); err != nil {
			return d, wrap(prefixField("hooks", err))
		}
		if d.PostUpdate == "" {
			if d.PostUpdate, err = optString(hooks, "post_update"); err != nil {
				return d, wrap(prefixField("hooks", err))
			}
		}
	}

	lazy, err := optMap(raw, "lazy")
	if err != nil {
		return d, wrap(err)
	}
	if lazy != nil {
		if d.Lazy.OnEvent, err = optStrings(lazy, "on_event"); err != nil {
			return d, wrap(prefixField("lazy", err))
		}
		if d.Lazy.OnFt, err = optStrings(lazy, "on_ft"); err != nil {
			return d, wrap(prefixField("lazy", err))
		}
		if d.Lazy.OnCmd, err = optStrings(lazy, "on_cmd"); err != nil {
			return d, wrap(prefixField("lazy", err))
		}
	}

	dev, err := optMap(raw, "dev")
	if err != nil {
		return d, wrap(err)
	}
	if dev != nil {
		if d.Dev.Enable, err = optBool(dev, "enable"); err != nil {
			return d, wrap(prefixField("dev", err))
		}
		if d.Dev.OverridePath, err = optString(dev, "overridePath"); err != nil {
			return d, wrap(prefixField("dev", err))
		}
	}

	return d, nil
}

// DecodeDeclarations decodes a list of raw entries. Every entry must be a map.
func DecodeDeclarations(items []any) ([]Declaration, error) {
	decls := make([]Declaration, 0, len(items))
	for i, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("plugin #%d: %w: expected table, got %T", i+1, ErrFieldType, item)
		}
		d, err := DecodeDeclaration(raw)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func prefixField(prefix string, err error) error {
	if fe, ok := err.(*FieldError); ok {
		fe.Field = prefix + "." + fe.Field
	}
	return err
}

func optString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldErr("", key, fmt.Errorf("%w: must be a string, got %T", ErrFieldType, v))
	}
	return s, nil
}

func optBool(m map[string]any, key string) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fieldErr("", key, fmt.Errorf("%w: must be a boolean, got %T", ErrFieldType, v))
	}
	return b, nil
}

func optMap(m map[string]any, key string) (map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch mv := v.(type) {
	case map[string]any:
		return mv, nil
	case []any:
		// An empty Lua table decodes as an empty list.
		if len(mv) == 0 {
			return map[string]any{}, nil
		}
	}
	return nil, fieldErr("", key, fmt.Errorf("%w: must be a table, got %T", ErrFieldType, v))
}

func optStrings(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fieldErr("", key, fmt.Errorf("%w: must be a list of strings, found %T", ErrFieldType, item))
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		// An empty Lua table can surface as an empty map.
		if len(list) == 0 {
			return nil, nil
		}
	}
	return nil, fieldErr("", key, fmt.Errorf("%w: must be a list of strings, got %T", ErrFieldType, v))
}
