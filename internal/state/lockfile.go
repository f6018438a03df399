package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LockSchema is the lockfile schema version.
const LockSchema = 1

// ErrInvalidLockfile indicates lock.json is malformed.
var ErrInvalidLockfile = errors.New("lockfile is invalid")

// Lockfile pins extension names to revisions.
type Lockfile struct {
	Schema  int
	Plugins map[string]string
}

// LockfilePath returns the lockfile path inside dir.
func LockfilePath(dir string) string {
	return filepath.Join(dir, LockFile)
}

// ReadLockfile loads lock.json. A missing file returns nil and no error.
func ReadLockfile(dir string) (*Lockfile, error) {
	data, err := os.ReadFile(LockfilePath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidLockfile
	}
	schema := gjson.GetBytes(data, "schema")
	plugins := gjson.GetBytes(data, "plugins")
	if schema.Type != gjson.Number || !plugins.IsObject() {
		return nil, ErrInvalidLockfile
	}

	lf := &Lockfile{Schema: int(schema.Int()), Plugins: map[string]string{}}
	var bad error
	plugins.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			bad = fmt.Errorf("%w: revision of %s is not a string", ErrInvalidLockfile, key.String())
			return false
		}
		lf.Plugins[key.String()] = value.String()
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return lf, nil
}

// WriteLockfile writes lock.json with names in sorted order.
func WriteLockfile(dir string, lf *Lockfile) error {
	schema := lf.Schema
	if schema == 0 {
		schema = LockSchema
	}
	data, err := sjson.SetBytes([]byte(`{}`), "schema", schema)
	if err != nil {
		return err
	}
	if data, err = sjson.SetRawBytes(data, "plugins", []byte(`{}`)); err != nil {
		return err
	}

	names := make([]string, 0, len(lf.Plugins))
	for name := range lf.Plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		data, err = sjson.SetBytes(data, "plugins."+gjson.Escape(name), lf.Plugins[name])
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
	}

	pretty := strings.TrimRight(gjson.GetBytes(data, "@pretty").Raw, "\n") + "\n"
	return writeAtomic(LockfilePath(dir), []byte(pretty))
}
