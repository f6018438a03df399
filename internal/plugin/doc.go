// Package plugin defines extension declarations and their canonical records.
//
// A configuration module returns a list of raw declarations. The Normalizer
// validates each one and produces a Record:
//
//	n := plugin.NewNormalizer(plugin.OSEnv{BaseDir: configDir})
//	records, err := n.NormalizeAll(decls)
//
// # Locators
//
// A repo locator is either a remote URL or a local path. Remote locators must
// use the https, ssh or git scheme and are stored verbatim. Local paths
// (absolute, ./, ../, ~, drive letters, file://) turn the record into a
// development override: the resolved absolute path becomes both the locator
// and the override path, and the default name is derived from the last path
// segment and the revision.
//
// # Hooks
//
// hookAdd runs before any extension loads, hookSource right after the
// extension finishes loading. A hook value starting with ~ or an absolute
// path refers to a hook module; anything else is inline code. The removed
// hooks.hook_add / hooks.hook_source fields are rejected.
//
// # Install layout
//
// Managed checkouts live under <dataDir>/repos, one directory per locator:
//
//	https://github.com/owner/name.git  ->  repos/owner/name
//	https://example.org/owner/name     ->  repos/example.org/owner/name
package plugin
