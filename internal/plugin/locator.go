package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	drivePath    = regexp.MustCompile(`^[a-zA-Z]:[\\/]`)
	anySchemeURL = regexp.MustCompile(`(?i)^([a-z][a-z0-9+.-]*)://`)
)

// allowedSchemes lists the schemes accepted for remote locators.
var allowedSchemes = map[string]bool{
	"https": true,
	"ssh":   true,
	"git":   true,
}

// IsLocalPath reports whether a locator names a filesystem path rather than
// a remote repository.
func IsLocalPath(locator string) bool {
	switch {
	case strings.HasPrefix(locator, "file://"):
		return true
	case locator == "." || locator == "..":
		return true
	case strings.HasPrefix(locator, "/"),
		strings.HasPrefix(locator, "./"),
		strings.HasPrefix(locator, "../"),
		strings.HasPrefix(locator, `.\`),
		strings.HasPrefix(locator, `..\`),
		strings.HasPrefix(locator, "~"):
		return true
	}
	return drivePath.MatchString(locator)
}

// NormalizeRemote validates a remote locator and returns it trimmed.
// Only https, ssh and git URLs are accepted.
func NormalizeRemote(locator string) (string, error) {
	trimmed := strings.TrimSpace(locator)
	if trimmed == "" {
		return "", ErrRepoRequired
	}
	if IsLocalPath(trimmed) {
		return "", fmt.Errorf("%w: %s", ErrLocalRepo, trimmed)
	}
	m := anySchemeURL.FindStringSubmatch(trimmed)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrNotURL, trimmed)
	}
	scheme := strings.ToLower(m[1])
	if scheme == "file" {
		return "", fmt.Errorf("%w: %s", ErrLocalRepo, trimmed)
	}
	if !allowedSchemes[scheme] {
		return "", fmt.Errorf("%w: %s", ErrScheme, scheme)
	}
	return trimmed, nil
}
