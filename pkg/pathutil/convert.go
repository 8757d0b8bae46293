// Package pathutil converts between the absolute paths used while walking
// the file system and the slash-separated relative paths stored in the
// index. Component records always carry relative paths so a persisted
// index stays valid when the project directory moves.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to a slash-separated path relative
// to rootDir. Paths outside the root, already-relative paths, and
// conversion failures come back unchanged apart from slash normalization.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return filepath.ToSlash(absPath)
	}
	if !filepath.IsAbs(absPath) {
		return filepath.ToSlash(absPath)
	}

	rel, err := filepath.Rel(filepath.Clean(rootDir), filepath.Clean(absPath))
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(rel)
}

// ToAbsolute resolves an index-relative path against rootDir. Absolute
// inputs pass through untouched.
func ToAbsolute(relPath, rootDir string) string {
	if relPath == "" || filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(rootDir, filepath.FromSlash(relPath))
}
