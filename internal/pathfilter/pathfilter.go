// Package pathfilter enumerates the indexable files under a project root.
// The walk is deterministic (lexicographic within each directory) so that
// repeated builds over an unchanged tree produce identical output.
package pathfilter

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/karrick/godirwalk"

	scierrors "github.com/structidx/sci/internal/errors"
	"github.com/structidx/sci/pkg/pathutil"
)

// Filter walks a root directory applying exclusion patterns and size limits.
type Filter struct {
	root           string
	excludes       []string
	extensions     map[string]bool
	maxFileSize    int64
	followSymlinks bool

	// real paths of directories already entered, for symlink cycle detection
	visited map[string]bool
}

// Option configures a Filter.
type Option func(*Filter)

// WithMaxFileSize skips files larger than n bytes. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(f *Filter) { f.maxFileSize = n }
}

// WithFollowSymlinks enables traversal into symlinked directories. Cycles
// are detected by resolved path and entered at most once.
func WithFollowSymlinks(follow bool) Option {
	return func(f *Filter) { f.followSymlinks = follow }
}

// New creates a Filter over root. Files are admitted only when their
// extension appears in extensions (lower-cased, with leading dot) and no
// exclude pattern matches their path.
func New(root string, excludes []string, extensions []string, opts ...Option) *Filter {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	f := &Filter{
		root:       root,
		excludes:   excludes,
		extensions: extSet,
		visited:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Result is the outcome of a walk: admitted files in walk order, plus
// non-fatal warnings for entries that had to be skipped.
type Result struct {
	Files    []string // relative to root, forward slashes
	Warnings []error
}

// Walk enumerates the tree. Unreadable entries produce warnings, never a
// walk failure; only a missing or unreadable root is a hard error.
func (f *Filter) Walk() (*Result, error) {
	if _, err := os.Stat(f.root); err != nil {
		return nil, err
	}

	res := &Result{}

	err := godirwalk.Walk(f.root, &godirwalk.Options{
		Unsorted: false, // lexicographic order within each directory
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			rel := pathutil.ToRelative(osPathname, f.root)
			if rel == "." || filepath.IsAbs(rel) {
				return nil
			}

			if de.IsDir() {
				if f.excluded(rel, true) {
					return filepath.SkipDir
				}
				if f.followSymlinks {
					if skip := f.markVisited(osPathname); skip {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if de.IsSymlink() && !f.followSymlinks {
				return nil
			}
			if !f.extensions[strings.ToLower(filepath.Ext(rel))] {
				return nil
			}
			if f.excluded(rel, false) {
				return nil
			}
			if f.maxFileSize > 0 {
				info, err := os.Stat(osPathname)
				if err != nil {
					res.Warnings = append(res.Warnings, scierrors.NewExtractionError(rel, "walk", err))
					return nil
				}
				if info.Size() > f.maxFileSize {
					return nil
				}
			}

			res.Files = append(res.Files, rel)
			return nil
		},
		ErrorCallback: func(osPathname string, err error) godirwalk.ErrorAction {
			rel := pathutil.ToRelative(osPathname, f.root)
			res.Warnings = append(res.Warnings, scierrors.NewExtractionError(rel, "walk", err))
			return godirwalk.SkipNode
		},
		FollowSymbolicLinks: f.followSymlinks,
	})
	if err != nil {
		return nil, err
	}

	// godirwalk sorts per directory; a final sort guarantees a stable global
	// order even across symlinked subtrees.
	sort.Strings(res.Files)
	return res, nil
}

// excluded reports whether any pattern matches the relative path. Directory
// patterns of the form "**/name/**" also match the directory itself so the
// whole subtree can be pruned.
func (f *Filter) excluded(rel string, isDir bool) bool {
	candidates := []string{rel}
	if isDir {
		// "src/__pycache__" must match "**/__pycache__/**"
		candidates = append(candidates, rel+"/")
	}
	for _, pattern := range f.excludes {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pattern, c); ok {
				return true
			}
		}
		if isDir {
			if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
				return true
			}
		}
	}
	return false
}

// markVisited records the resolved path of a directory and reports whether
// it was already entered via another link.
func (f *Filter) markVisited(osPathname string) bool {
	real, err := filepath.EvalSymlinks(osPathname)
	if err != nil {
		return false
	}
	if f.visited[real] {
		return true
	}
	f.visited[real] = true
	return false
}
