package rules

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// RelPath returns fullPath relative to root, failing when fullPath is not
// inside root.
func RelPath(root, fullPath string) (string, error) {
	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", fullPath, root)
	}
	return rel, nil
}

// Depth counts the separators between root and fullPath. Items directly
// under root are at depth 0; an item that cannot be related to root is
// reported at depth 0.
func Depth(root, fullPath string) int {
	rel, err := RelPath(root, fullPath)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator))
}

// PathLength is the length of a path in characters, not bytes
func PathLength(p string) int {
	return utf8.RuneCountInString(p)
}

// ProjectDestination builds the URL fullPath would have under base once
// migrated: each segment of the root-relative path is percent-encoded on its
// own and joined with "/". ok is false when the projection is not possible,
// in which case callers use the raw path length.
func ProjectDestination(base, root, fullPath string) (projected string, ok bool) {
	if base == "" {
		return "", false
	}
	rel, err := RelPath(root, fullPath)
	if err != nil || rel == "." {
		return "", false
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/"), true
}

// LibraryBase joins a site URL and a library name into a destination base
func LibraryBase(siteURL, library string) string {
	site := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if library == "" {
		return site
	}
	return site + "/" + url.PathEscape(library)
}
