package state

import (
	"time"

	"github.com/dshills/quiver/internal/plugin"
	"github.com/dshills/quiver/internal/plugin/scan"
	"github.com/dshills/quiver/internal/plugin/trigger"
)

// Input carries the outputs of one compile into Assemble.
type Input struct {
	Version    string
	ConfigPath string
	DataDir    string
	Records    []plugin.Record
	Order      []string
	Triggers   trigger.Table
	Manifests  map[string]scan.Manifest
	Hooks      map[string]Hooks
}

// Assemble builds the artifact, stamping the schema and the generation time.
func Assemble(in Input, now time.Time) *State {
	st := &State{
		Schema: Schema,
		Meta: Meta{
			Version:     in.Version,
			ConfigPath:  in.ConfigPath,
			GeneratedAt: now.UTC().Format(time.RFC3339Nano),
		},
		Plugins:  make(map[string]Plugin, len(in.Records)),
		Order:    nonNil(in.Order),
		Triggers: nonNilTable(in.Triggers),
	}
	for i := range in.Records {
		rec := &in.Records[i]
		m := in.Manifests[rec.Name]
		st.Plugins[rec.Name] = Plugin{
			Path:    rec.BaseDir(in.DataDir),
			Rtp:     rec.Rtp,
			Depends: nonNil(rec.Depends),
			Lazy: plugin.Lazy{
				OnEvent: nonNil(rec.Lazy.OnEvent),
				OnFt:    nonNil(rec.Lazy.OnFt),
				OnCmd:   nonNil(rec.Lazy.OnCmd),
			},
			Hooks:       in.Hooks[rec.Name],
			Sources:     nonNil(m.General),
			BootSources: nonNil(m.Boot),
			FtSources: scan.FtSources{
				Ftplugin: nonNilMap(m.Ft.Ftplugin),
				Indent:   nonNilMap(m.Ft.Indent),
				Syntax:   nonNilMap(m.Ft.Syntax),
			},
			Dev: rec.Dev,
		}
	}
	return st
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func nonNilTable(t trigger.Table) trigger.Table {
	return trigger.Table{
		Event: nonNilMap(t.Event),
		Ft:    nonNilMap(t.Ft),
		Cmd:   nonNilMap(t.Cmd),
	}
}
