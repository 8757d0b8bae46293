// Package query answers lookups against the active snapshot. All
// operations are read-only over immutable snapshots; a rebuild in progress
// never blocks a query.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/structidx/sci/internal/config"
	scierrors "github.com/structidx/sci/internal/errors"
	"github.com/structidx/sci/internal/snapshot"
	"github.com/structidx/sci/internal/types"
)

// Scoring weights for search_code, layered from strongest to weakest
// signal. Results are ranked by the sum of all matching layers.
const (
	scoreExactName    = 100.0
	scoreNamePrefix   = 80.0
	scoreNameContains = 50.0
	scoreFuzzyName    = 40.0 // scaled by similarity
	scoreSummaryMatch = 20.0 // scaled by token overlap
	scoreSnippetMatch = 15.0 // scaled by token overlap
	scoreFilePath     = 10.0
)

// Engine executes the query operations.
type Engine struct {
	cache *snapshot.Cache
	cfg   *config.Config
}

// New creates an Engine over cache.
func New(cache *snapshot.Cache, cfg *config.Config) *Engine {
	return &Engine{cache: cache, cfg: cfg}
}

// SearchResult pairs a component with its relevance score.
type SearchResult struct {
	Component types.ComponentRecord `json:"component"`
	Score     float64               `json:"score"`
}

// SearchCode ranks components against a free-text query. kindFilter narrows
// to one component kind ("" means all); limit caps results (0 means the
// configured default). Zero-scoring components are excluded. Ties are
// broken by file path, then start line, so result order is deterministic.
func (e *Engine) SearchCode(ctx context.Context, query, kindFilter string, limit int) ([]SearchResult, error) {
	snap, err := e.cache.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	if kindFilter != "" && !types.ValidKind(kindFilter) {
		return nil, scierrors.NewUnknownComponentTypeError(kindFilter, kindNames())
	}
	if limit <= 0 {
		limit = e.cfg.Search.MaxResults
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []SearchResult{}, nil
	}
	qTokens := stemTokens(q)

	var results []SearchResult
	for i := range snap.Components() {
		c := &snap.Components()[i]
		if kindFilter != "" && c.Kind != types.ComponentKind(kindFilter) {
			continue
		}
		score := e.scoreComponent(c, q, qTokens)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{Component: *c, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Component.FilePath != results[j].Component.FilePath {
			return results[i].Component.FilePath < results[j].Component.FilePath
		}
		return results[i].Component.StartLine < results[j].Component.StartLine
	})

	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

func (e *Engine) scoreComponent(c *types.ComponentRecord, q string, qTokens []string) float64 {
	name := strings.ToLower(c.Name)

	score := 0.0
	switch {
	case name == q:
		score += scoreExactName
	case strings.HasPrefix(name, q):
		score += scoreNamePrefix
	case strings.Contains(name, q):
		score += scoreNameContains
	default:
		if e.cfg.Search.EnableFuzzy {
			if sim, err := edlib.StringsSimilarity(q, name, edlib.JaroWinkler); err == nil {
				if float64(sim) >= e.cfg.Search.FuzzyThreshold {
					score += scoreFuzzyName * float64(sim)
				}
			}
		}
	}

	if f := tokenOverlap(qTokens, c.Summary); f > 0 {
		score += scoreSummaryMatch * f
	}
	if f := tokenOverlap(qTokens, c.Snippet); f > 0 {
		score += scoreSnippetMatch * f
	}
	if strings.Contains(strings.ToLower(c.FilePath), q) {
		score += scoreFilePath
	}
	return score
}

// FindRoute locates routes by path template or handler name: exact match
// first, substring fallback. An empty result means no route matched.
func (e *Engine) FindRoute(ctx context.Context, query string) ([]types.ComponentRecord, error) {
	snap, err := e.cache.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	var out []types.ComponentRecord
	for _, c := range snap.ByRoutePath(query) {
		out = append(out, *c)
	}
	for _, c := range snap.ByName(query) {
		if c.Kind == types.KindRoute {
			out = appendUnique(out, c)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	// substring fallback
	q := strings.ToLower(query)
	for _, c := range snap.ByKind(types.KindRoute) {
		path, _ := c.Extra["path"].(string)
		if strings.Contains(strings.ToLower(path), q) ||
			strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, *c)
		}
	}
	if out == nil {
		out = []types.ComponentRecord{}
	}
	return out, nil
}

// FindModel locates model classes by name: exact case-insensitive match
// first, substring fallback, all matches returned.
func (e *Engine) FindModel(ctx context.Context, name string) ([]types.ComponentRecord, error) {
	return e.findNamed(ctx, name, types.KindModel)
}

// FindTable locates tables (and views) by name the same way.
func (e *Engine) FindTable(ctx context.Context, name string) ([]types.ComponentRecord, error) {
	out, err := e.findNamed(ctx, name, types.KindTable)
	if err != nil || len(out) > 0 {
		return out, err
	}
	return e.findNamed(ctx, name, types.KindView)
}

func (e *Engine) findNamed(ctx context.Context, name string, kind types.ComponentKind) ([]types.ComponentRecord, error) {
	snap, err := e.cache.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	var out []types.ComponentRecord
	for _, c := range snap.ByName(name) {
		if c.Kind == kind {
			out = append(out, *c)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	q := strings.ToLower(name)
	for _, c := range snap.ByKind(kind) {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, *c)
		}
	}
	if out == nil {
		out = []types.ComponentRecord{}
	}
	return out, nil
}

// ListComponents returns all components of one kind in document order.
// An unknown kind is an error so callers can correct themselves.
func (e *Engine) ListComponents(ctx context.Context, kind string, limit int) ([]types.ComponentRecord, error) {
	snap, err := e.cache.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	if !types.ValidKind(kind) {
		return nil, scierrors.NewUnknownComponentTypeError(kind, kindNames())
	}

	records := snap.ByKind(types.ComponentKind(kind))
	out := make([]types.ComponentRecord, 0, len(records))
	for _, c := range records {
		out = append(out, *c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FileExplanation summarizes everything extracted from one file.
type FileExplanation struct {
	FilePath   string                             `json:"file_path"`
	Summary    string                             `json:"summary,omitempty"`
	Imports    []string                           `json:"imports,omitempty"`
	Components map[string][]types.ComponentRecord `json:"components"`
	Total      int                                `json:"total"`
}

// ExplainFile reports the components of a root-relative path, grouped by
// kind. Unknown paths are NotFound.
func (e *Engine) ExplainFile(ctx context.Context, path string) (*FileExplanation, error) {
	snap, err := e.cache.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	records := snap.ByFile(path)
	if len(records) == 0 {
		return nil, scierrors.NewNotFoundError("file", path)
	}

	exp := &FileExplanation{
		FilePath:   path,
		Components: make(map[string][]types.ComponentRecord),
	}
	for _, c := range records {
		if c.Kind == types.KindFileSummary {
			exp.Summary = c.Summary
			exp.Imports = stringSlice(c.Extra["imports"])
			continue
		}
		exp.Components[string(c.Kind)] = append(exp.Components[string(c.Kind)], *c)
		exp.Total++
	}
	return exp, nil
}

// Rebuild forces a fresh index build and reports its stats.
func (e *Engine) Rebuild(ctx context.Context) (types.Stats, error) {
	snap, err := e.cache.Rebuild(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	return snap.Doc.ComputeStats(), nil
}

// Stats reports stats for the active snapshot, building one if needed.
func (e *Engine) Stats(ctx context.Context) (types.Stats, error) {
	snap, err := e.cache.Ensure(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	return snap.Doc.ComputeStats(), nil
}

func kindNames() []string {
	names := make([]string, len(types.AllKinds))
	for i, k := range types.AllKinds {
		names[i] = string(k)
	}
	return names
}

// stemTokens lower-cases, splits on non-alphanumerics, and stems each token
// so "users" matches "user table".
func stemTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		out = append(out, porter2.Stem(f))
	}
	return out
}

// tokenOverlap reports the fraction of query tokens present in text.
func tokenOverlap(qTokens []string, text string) float64 {
	if len(qTokens) == 0 || text == "" {
		return 0
	}
	textTokens := stemTokens(text)
	if len(textTokens) == 0 {
		return 0
	}
	set := make(map[string]bool, len(textTokens))
	for _, t := range textTokens {
		set[t] = true
	}
	matched := 0
	for _, t := range qTokens {
		if set[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(qTokens))
}

func appendUnique(records []types.ComponentRecord, c *types.ComponentRecord) []types.ComponentRecord {
	for i := range records {
		if records[i].ID == c.ID {
			return records
		}
	}
	return append(records, *c)
}

// stringSlice normalizes extras that may be []string in-memory or
// []interface{} after a JSON round trip.
func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, el := range vv {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
