// Package runtime loads compiled extensions inside a host.
//
// A Loader consumes a compiled state and drives one Session:
//
//	loader := runtime.NewLoader(st, host, runtime.WithLogger(logger))
//	if err := loader.Start(); err != nil {
//	    logger.Warn("startup finished with errors", zap.Error(err))
//	}
//	...
//	loader.HandleEvent("InsertEnter")
//	loader.HandleFileType("go")
//
// Start sources boot files for every extension, runs pre-load hooks in
// dependency order, loads every extension without lazy triggers and
// registers a stub for each trigger command. A stub loads the extensions
// registered for its command and re-issues the original invocation through
// the host.
//
// Failures while loading one extension are soft: they are logged, the
// extension stays unloaded, and loading of other extensions continues.
//
// The loader is not safe for concurrent use. The host calls it from its own
// single-threaded event loop.
package runtime
