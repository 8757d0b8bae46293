// Package snapshot owns the query-facing index lifecycle. Readers always
// see a complete, immutable snapshot; rebuilds happen off to the side and
// swap in atomically only on success.
package snapshot

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/structidx/sci/internal/config"
	"github.com/structidx/sci/internal/debug"
	scierrors "github.com/structidx/sci/internal/errors"
	"github.com/structidx/sci/internal/indexer"
	"github.com/structidx/sci/internal/types"
)

// Snapshot is an immutable index document plus derived lookup tables.
// Lookups are recomputed on build and on load, never persisted.
type Snapshot struct {
	Doc *types.IndexDocument

	byID    map[string]*types.ComponentRecord
	byKind  map[types.ComponentKind][]*types.ComponentRecord
	byName  map[string][]*types.ComponentRecord // lower-cased component name
	byFile  map[string][]*types.ComponentRecord
	byRoute map[string][]*types.ComponentRecord // route path template
}

// NewSnapshot derives the lookup tables for doc.
func NewSnapshot(doc *types.IndexDocument) *Snapshot {
	s := &Snapshot{
		Doc:     doc,
		byID:    make(map[string]*types.ComponentRecord),
		byKind:  make(map[types.ComponentKind][]*types.ComponentRecord),
		byName:  make(map[string][]*types.ComponentRecord),
		byFile:  make(map[string][]*types.ComponentRecord),
		byRoute: make(map[string][]*types.ComponentRecord),
	}
	for i := range doc.Components {
		c := &doc.Components[i]
		s.byID[c.ID] = c
		s.byKind[c.Kind] = append(s.byKind[c.Kind], c)
		s.byName[strings.ToLower(c.Name)] = append(s.byName[strings.ToLower(c.Name)], c)
		s.byFile[c.FilePath] = append(s.byFile[c.FilePath], c)
		if c.Kind == types.KindRoute {
			if path, ok := c.Extra["path"].(string); ok {
				s.byRoute[path] = append(s.byRoute[path], c)
			}
		}
	}
	return s
}

// Components returns all records in document order.
func (s *Snapshot) Components() []types.ComponentRecord {
	return s.Doc.Components
}

// ByID looks up a single record.
func (s *Snapshot) ByID(id string) *types.ComponentRecord {
	return s.byID[id]
}

// ByKind returns all records of one kind.
func (s *Snapshot) ByKind(kind types.ComponentKind) []*types.ComponentRecord {
	return s.byKind[kind]
}

// ByName returns records whose name matches case-insensitively.
func (s *Snapshot) ByName(name string) []*types.ComponentRecord {
	return s.byName[strings.ToLower(name)]
}

// ByFile returns all records extracted from one file.
func (s *Snapshot) ByFile(path string) []*types.ComponentRecord {
	return s.byFile[path]
}

// ByRoutePath returns route records registered for a path template.
func (s *Snapshot) ByRoutePath(path string) []*types.ComponentRecord {
	return s.byRoute[path]
}

// Cache holds the active snapshot and coordinates rebuilds.
type Cache struct {
	cfg     *config.Config
	builder *indexer.Builder

	current    atomic.Pointer[Snapshot]
	group      singleflight.Group
	rebuilding atomic.Bool
}

// NewCache creates an empty cache for cfg. No snapshot is active until
// LoadFromDisk or Rebuild succeeds.
func NewCache(cfg *config.Config) *Cache {
	return &Cache{cfg: cfg, builder: indexer.New(cfg)}
}

// Builder exposes the underlying builder (for watch wiring).
func (c *Cache) Builder() *indexer.Builder {
	return c.builder
}

// Current returns the active snapshot, or IndexUnavailable when none has
// been built or loaded yet. Never blocks.
func (c *Cache) Current() (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return nil, scierrors.NewIndexUnavailableError(c.cfg.IndexPath())
}

// LoadFromDisk activates the persisted document, validating its schema.
func (c *Cache) LoadFromDisk() error {
	doc, err := indexer.Load(c.cfg.IndexPath())
	if err != nil {
		return err
	}
	c.current.Store(NewSnapshot(doc))
	debug.LogIndexing("loaded index from %s: %d components",
		c.cfg.IndexPath(), len(doc.Components))
	return nil
}

// Ensure returns the active snapshot, activating the persisted document or
// building a fresh one as needed.
func (c *Cache) Ensure(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	if err := c.LoadFromDisk(); err == nil {
		return c.current.Load(), nil
	}
	return c.Rebuild(ctx)
}

// Rebuild builds, persists, and swaps in a new snapshot. Concurrent calls
// coalesce into one build and share its outcome. Readers keep the previous
// snapshot until the swap; a failed rebuild leaves it active.
func (c *Cache) Rebuild(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("rebuild", func() (interface{}, error) {
		c.rebuilding.Store(true)
		defer c.rebuilding.Store(false)

		doc, warnings, err := c.builder.BuildAndSave(ctx)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			debug.LogIndexing("build warning: %v", w)
		}

		s := NewSnapshot(doc)
		c.current.Store(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// TryRebuild is the non-blocking variant used by the watcher: it reports
// RebuildInProgress instead of queueing behind a running build.
func (c *Cache) TryRebuild(ctx context.Context) (*Snapshot, error) {
	if c.rebuilding.Load() {
		return nil, scierrors.NewRebuildInProgressError()
	}
	return c.Rebuild(ctx)
}
