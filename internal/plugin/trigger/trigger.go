// Package trigger builds the reverse lookup tables used for lazy activation.
package trigger

import (
	"slices"

	"github.com/dshills/quiver/internal/plugin"
)

// Table maps activation keys to the names of the extensions they load.
// Every value is sorted and holds no duplicates.
type Table struct {
	Event map[string][]string `json:"event"`
	Ft    map[string][]string `json:"ft"`
	Cmd   map[string][]string `json:"cmd"`
}

// NewTable returns an empty table with all three maps allocated.
func NewTable() Table {
	return Table{
		Event: map[string][]string{},
		Ft:    map[string][]string{},
		Cmd:   map[string][]string{},
	}
}

// Build inverts the lazy-activation lists of every record.
func Build(records []plugin.Record) Table {
	t := NewTable()
	for i := range records {
		r := &records[i]
		for _, ev := range r.Lazy.OnEvent {
			add(t.Event, ev, r.Name)
		}
		for _, ft := range r.Lazy.OnFt {
			add(t.Ft, ft, r.Name)
		}
		for _, cmd := range r.Lazy.OnCmd {
			add(t.Cmd, cmd, r.Name)
		}
	}
	for _, m := range []map[string][]string{t.Event, t.Ft, t.Cmd} {
		for _, names := range m {
			slices.Sort(names)
		}
	}
	return t
}

func add(m map[string][]string, key, name string) {
	if key == "" || slices.Contains(m[key], name) {
		return
	}
	m[key] = append(m[key], name)
}

// Commands returns the command keys in sorted order.
func (t Table) Commands() []string {
	return sortedKeys(t.Cmd)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
