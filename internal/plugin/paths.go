package plugin

import (
	"regexp"
	"strings"
)

var (
	schemePrefix = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
	unsafeChars  = regexp.MustCompile(`[^a-z0-9._-]`)
)

// ReposDirName is the directory under the data dir holding managed checkouts.
const ReposDirName = "repos"

// JoinPath joins path elements with forward slashes, dropping empty parts and
// collapsing repeated separators. Backslashes are converted.
func JoinPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		cleaned = append(cleaned, strings.ReplaceAll(part, `\`, "/"))
	}
	joined := strings.Join(cleaned, "/")
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	return joined
}

// InstallDir returns the canonical install location for a remote locator.
//
// github.com hosts are elided, other hosts become the first segment:
//
//	https://github.com/owner/repo.git -> <dataDir>/repos/owner/repo
//	https://gitlab.com/owner/repo     -> <dataDir>/repos/gitlab.com/owner/repo
func InstallDir(dataDir, repo string) string {
	return JoinPath(append([]string{dataDir, ReposDirName}, repoSegments(repo)...)...)
}

func repoSegments(spec string) []string {
	var host, path string
	if loc := schemePrefix.FindStringIndex(spec); loc != nil {
		rest := spec[loc[1]:]
		host, path, _ = strings.Cut(rest, "/")
	} else {
		path = spec
	}

	path = strings.TrimSuffix(path, ".git")
	path = strings.Trim(path, "/")

	var segments []string
	if path != "" {
		segments = strings.Split(path, "/")
	}
	if host != "" && host != "github.com" && host != "www.github.com" {
		segments = append([]string{host}, segments...)
	}
	if len(segments) == 0 {
		segments = []string{"_"}
	}
	for i, seg := range segments {
		segments[i] = sanitize(seg)
	}
	return segments
}

// sanitize lowercases s and replaces characters outside [a-z0-9._-] with '_'.
func sanitize(s string) string {
	safe := unsafeChars.ReplaceAllString(strings.ToLower(s), "_")
	if safe == "" {
		return "_"
	}
	return safe
}
