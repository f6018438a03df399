package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// HelperModule is the module name configuration scripts require.
const HelperModule = "quiver"

// BuiltinPrefix marks a helper locator served from the binary itself.
const BuiltinPrefix = "builtin:"

// ImportMap is the resolution manifest mapping module names to locators.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// ImportMapPath returns the resolution manifest path inside dir.
func ImportMapPath(dir string) string {
	return filepath.Join(dir, ImportMapFile)
}

// HelperLocator returns where the helper module is loaded from. With
// QUIVER_DEV=1 and QUIVER_HELPER naming a file, that file is used; otherwise
// the copy built into the binary.
func HelperLocator(version string, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("QUIVER_DEV") == "1" {
		if p := getenv("QUIVER_HELPER"); p != "" {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	if version == "" {
		version = "dev"
	}
	return BuiltinPrefix + HelperModule + "@" + version
}

// WriteImportMap (re)writes the resolution manifest.
func WriteImportMap(dir, locator string) error {
	data, err := json.MarshalIndent(ImportMap{
		Imports: map[string]string{HelperModule: locator},
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(ImportMapPath(dir), append(data, '\n'))
}

// EnsureImportMap writes the resolution manifest unless a valid one exists.
func EnsureImportMap(dir, locator string) error {
	if _, err := ReadImportMap(dir); err == nil {
		return nil
	}
	return WriteImportMap(dir, locator)
}

// ReadImportMap loads the resolution manifest. A manifest without a helper
// entry is invalid.
func ReadImportMap(dir string) (*ImportMap, error) {
	data, err := os.ReadFile(ImportMapPath(dir))
	if err != nil {
		return nil, err
	}
	var m ImportMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid import map: %w", err)
	}
	if m.Imports[HelperModule] == "" {
		return nil, errors.New("invalid import map: missing " + HelperModule)
	}
	return &m, nil
}
