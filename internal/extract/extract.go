// Package extract turns source files into component records. Each dialect
// extractor is pure over its input: same bytes in, same records out, no
// shared state between calls.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/structidx/sci/internal/types"
)

// Extractor produces the structural components of a single file.
// filePath is the root-relative path recorded on the emitted components;
// implementations never touch the file system.
type Extractor interface {
	Extract(filePath string, src []byte) ([]types.ComponentRecord, error)
}

// Registry maps file extensions to dialect extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the built-in dialects registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(NewPython(), ".py")
	r.Register(NewSQL(), ".sql")
	r.Register(NewMarkdown(), ".md", ".markdown")
	return r
}

// Register binds an extractor to one or more extensions (with leading dot).
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// For returns the extractor for a path, or nil when the file type is not
// indexed.
func (r *Registry) For(path string) Extractor {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}

// Extensions lists every registered extension, for walk filtering.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

// countLines reports the number of lines in src, counting a trailing
// partial line.
func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := 1
	for _, b := range src {
		if b == '\n' {
			n++
		}
	}
	if src[len(src)-1] == '\n' {
		n--
	}
	return n
}

// firstLine returns s up to the first newline, trimmed.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
