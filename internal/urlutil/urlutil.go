// Package urlutil builds the absolute URLs handed to the payment provider
// and put into emails, and vets the local paths users may be sent back to
// after sign-in or a form post.
package urlutil

import "strings"

// BuildAbsolute joins base and path with exactly one slash. An already
// absolute path is returned unchanged.
func BuildAbsolute(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	case strings.HasPrefix(path, "/"):
		return base + path
	}
	return base + "/" + path
}

// IsLocalPath reports whether target stays on this site, so redirecting
// to it cannot become an open redirect or a header injection.
func IsLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") &&
		!strings.HasPrefix(target, "//") &&
		!strings.HasPrefix(target, "/\\") &&
		!strings.ContainsAny(target, "\r\n")
}

// LocalPathOr returns target when it is a local path and fallback otherwise.
func LocalPathOr(target, fallback string) string {
	if IsLocalPath(target) {
		return target
	}
	return fallback
}
