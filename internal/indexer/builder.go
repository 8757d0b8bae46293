// Package indexer orchestrates full index builds: walk, extract, assemble,
// persist. A build never mutates a previously returned document.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/structidx/sci/internal/config"
	"github.com/structidx/sci/internal/debug"
	scierrors "github.com/structidx/sci/internal/errors"
	"github.com/structidx/sci/internal/extract"
	"github.com/structidx/sci/internal/pathfilter"
	"github.com/structidx/sci/internal/types"
)

// Builder produces IndexDocuments for a configured project root.
type Builder struct {
	cfg      *config.Config
	registry *extract.Registry
}

// New creates a Builder with the built-in dialect extractors.
func New(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, registry: extract.NewRegistry()}
}

// Extensions exposes the indexable extensions, for watch filtering.
func (b *Builder) Extensions() []string {
	return b.registry.Extensions()
}

// Build walks the root and extracts every admitted file. Extraction runs on
// a bounded worker pool; results are reassembled in walk order so the
// component list is deterministic for an unchanged tree. Per-file failures
// become warnings, never build failures.
func (b *Builder) Build(ctx context.Context) (*types.IndexDocument, []error, error) {
	start := time.Now()

	filter := pathfilter.New(b.cfg.Project.Root, b.cfg.Exclude, b.registry.Extensions(),
		pathfilter.WithMaxFileSize(b.cfg.Index.MaxFileSize),
		pathfilter.WithFollowSymlinks(b.cfg.Index.FollowSymlinks))
	res, err := filter.Walk()
	if err != nil {
		return nil, nil, err
	}
	warnings := res.Warnings

	perFile := make([][]types.ComponentRecord, len(res.Files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers())
	for i, rel := range res.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			abs := filepath.Join(b.cfg.Project.Root, filepath.FromSlash(rel))
			src, err := os.ReadFile(abs)
			if err != nil {
				mu.Lock()
				warnings = append(warnings, scierrors.NewExtractionError(rel, "read", err))
				mu.Unlock()
				return nil
			}

			extractor := b.registry.For(rel)
			if extractor == nil {
				return nil
			}
			records, err := extractor.Extract(rel, src)
			if err != nil {
				mu.Lock()
				warnings = append(warnings, err)
				mu.Unlock()
				return nil
			}
			perFile[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, warnings, err
	}

	doc := &types.IndexDocument{
		SchemaVersion:   types.SchemaVersion,
		RootPath:        b.cfg.Project.Root,
		ExcludePatterns: b.cfg.Exclude,
		GeneratedAt:     time.Now().UTC(),
	}
	for _, recs := range perFile {
		doc.Components = append(doc.Components, recs...)
	}

	debug.LogIndexing("built index: %d files, %d components, %d warnings in %s",
		len(res.Files), len(doc.Components), len(warnings), time.Since(start))
	return doc, warnings, nil
}

// BuildAndSave builds and persists the document at the configured location.
func (b *Builder) BuildAndSave(ctx context.Context) (*types.IndexDocument, []error, error) {
	doc, warnings, err := b.Build(ctx)
	if err != nil {
		return nil, warnings, err
	}
	if err := Save(doc, b.cfg.IndexPath()); err != nil {
		return nil, warnings, err
	}
	return doc, warnings, nil
}

// Save writes the document atomically: a temp file in the target directory
// is renamed over the destination, so readers never observe a partial
// document and an interrupted write leaves the previous one intact.
func Save(doc *types.IndexDocument, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize index: %w", err)
	}

	return nil
}

// Load reads a persisted document, rejecting missing files and foreign
// schema versions.
func Load(path string) (*types.IndexDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scierrors.NewIndexUnavailableError(path)
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	if header.SchemaVersion != types.SchemaVersion {
		return nil, scierrors.NewSchemaMismatchError(path, header.SchemaVersion, types.SchemaVersion)
	}

	var doc types.IndexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return &doc, nil
}
