package types

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SchemaVersion identifies the persisted index layout. Documents written
// with a different version are rejected on load and must be rebuilt.
const SchemaVersion = 1

// ComponentKind classifies an extracted component.
type ComponentKind string

const (
	KindFunction    ComponentKind = "function"
	KindClass       ComponentKind = "class"
	KindRoute       ComponentKind = "route"
	KindModel       ComponentKind = "model"
	KindTable       ComponentKind = "table"
	KindView        ComponentKind = "view"
	KindDocSection  ComponentKind = "doc_section"
	KindFileSummary ComponentKind = "file_summary"
)

// AllKinds lists every valid component kind in declaration order.
var AllKinds = []ComponentKind{
	KindFunction,
	KindClass,
	KindRoute,
	KindModel,
	KindTable,
	KindView,
	KindDocSection,
	KindFileSummary,
}

var validKinds = func() map[ComponentKind]bool {
	m := make(map[ComponentKind]bool, len(AllKinds))
	for _, k := range AllKinds {
		m[k] = true
	}
	return m
}()

// ValidKind reports whether s names a known component kind.
func ValidKind(s string) bool {
	return validKinds[ComponentKind(s)]
}

// ComponentRecord is one structural component extracted from a source file.
// Records are pure data: all fields are set at extraction time and never
// mutated afterwards.
type ComponentRecord struct {
	ID            string         `json:"id"`
	Kind          ComponentKind  `json:"kind"`
	Name          string         `json:"name"`
	QualifiedName string         `json:"qualified_name,omitempty"`
	FilePath      string         `json:"file_path"`
	StartLine     int            `json:"start_line"`
	EndLine       int            `json:"end_line"`
	Summary       string         `json:"summary,omitempty"`
	Snippet       string         `json:"snippet,omitempty"`
	ParentID      string         `json:"parent_id,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// ComponentID derives the stable identifier for a component. The same
// (file, kind, qualified name) triple always hashes to the same ID across
// rebuilds, so external references survive re-indexing.
func ComponentID(filePath string, kind ComponentKind, qualifiedName string) string {
	h := xxhash.New()
	_, _ = h.WriteString(filePath)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(qualifiedName)
	return fmt.Sprintf("%016x", h.Sum64())
}

// IndexDocument is the persisted form of a complete index build.
// Lookup tables are derived state and intentionally absent; they are
// recomputed whenever a document is built or loaded.
type IndexDocument struct {
	SchemaVersion   int               `json:"schema_version"`
	RootPath        string            `json:"root_path"`
	ExcludePatterns []string          `json:"exclude_patterns,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Components      []ComponentRecord `json:"components"`
}

// Stats summarizes a document for status output.
type Stats struct {
	TotalComponents int                   `json:"total_components"`
	ByKind          map[ComponentKind]int `json:"by_kind"`
	Files           int                   `json:"files"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// ComputeStats tallies component counts for doc.
func (doc *IndexDocument) ComputeStats() Stats {
	byKind := make(map[ComponentKind]int)
	files := make(map[string]struct{})
	for i := range doc.Components {
		byKind[doc.Components[i].Kind]++
		files[doc.Components[i].FilePath] = struct{}{}
	}
	return Stats{
		TotalComponents: len(doc.Components),
		ByKind:          byKind,
		Files:           len(files),
		GeneratedAt:     doc.GeneratedAt,
	}
}

// Location renders "path:line" for log and CLI output.
func (c *ComponentRecord) Location() string {
	return c.FilePath + ":" + strconv.Itoa(c.StartLine)
}
