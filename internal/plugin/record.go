package plugin

// HookRef is a resolved hook reference: either an absolute path to a hook
// module or an inline code string. At most one of the fields is set.
type HookRef struct {
	Path   string
	Inline string
}

// IsZero reports whether no hook is declared.
func (h HookRef) IsZero() bool {
	return h.Path == "" && h.Inline == ""
}

// Dev is the normalized development override.
type Dev struct {
	Enable       bool   `json:"enable"`
	OverridePath string `json:"override_path"`
}

// Record is the canonical form of one extension declaration.
type Record struct {
	Name       string
	Repo       string
	Rev        string
	Rtp        string
	Depends    []string
	HookAdd    HookRef
	HookSource HookRef
	PostUpdate string
	Lazy       Lazy
	Dev        Dev
}

// BaseDir returns the directory the extension is read from: the override
// path for development records, otherwise the managed install location.
func (r *Record) BaseDir(dataDir string) string {
	if r.Dev.Enable {
		return r.Dev.OverridePath
	}
	return InstallDir(dataDir, r.Repo)
}

// RuntimeDir returns BaseDir joined with the declared runtime subpath.
func (r *Record) RuntimeDir(dataDir string) string {
	base := r.BaseDir(dataDir)
	if r.Rtp == "" {
		return base
	}
	return JoinPath(base, r.Rtp)
}

// ByName indexes records by name.
func ByName(records []Record) map[string]*Record {
	m := make(map[string]*Record, len(records))
	for i := range records {
		m[records[i].Name] = &records[i]
	}
	return m
}
