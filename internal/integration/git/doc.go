// Package git runs the git executable for installing and refreshing
// extension checkouts.
//
// Every operation returns a Result carrying the exit code and trimmed
// output rather than failing on a non-zero exit, so callers decide which
// failures are fatal. A missing git binary reports exit code 127.
package git
