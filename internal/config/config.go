package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Default limits and locations for the index.
const (
	DefaultMaxFileSize     = 10 * 1024 * 1024 // files above this are skipped
	DefaultWatchDebounceMs = 500
	DefaultMaxResults      = 10
	DefaultFuzzyThreshold  = 0.85

	// IndexDirName is the directory under the project root that holds the
	// persisted document. It is always excluded from walks.
	IndexDirName  = ".sci"
	IndexFileName = "index.json"
)

type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Search      Search
	Exclude     []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize     int64
	FollowSymlinks  bool
	WatchMode       bool // rebuild automatically on file system changes
	WatchDebounceMs int  // quiet period before a watch-triggered rebuild
}

type Performance struct {
	ParallelFileWorkers int // 0 = auto-detect (NumCPU)
}

type Search struct {
	MaxResults     int
	EnableFuzzy    bool
	FuzzyThreshold float64
}

// DefaultExcludes mirrors the directories that never contain indexable
// source: virtualenvs, caches, VCS metadata, and the index output itself.
func DefaultExcludes() []string {
	return []string{
		"**/.venv/**",
		"**/venv/**",
		"**/__pycache__/**",
		"**/.git/**",
		"**/.pytest_cache/**",
		"**/node_modules/**",
		"**/.ipynb_checkpoints/**",
		"**/instance/**",
		"**/.data_versions/**",
		"**/" + IndexDirName + "/**",
	}
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Index: Index{
			MaxFileSize:     DefaultMaxFileSize,
			WatchDebounceMs: DefaultWatchDebounceMs,
		},
		Performance: Performance{
			ParallelFileWorkers: 0,
		},
		Search: Search{
			MaxResults:     DefaultMaxResults,
			EnableFuzzy:    true,
			FuzzyThreshold: DefaultFuzzyThreshold,
		},
		Exclude: DefaultExcludes(),
	}
}

// Load resolves the effective configuration for root: built-in defaults,
// then .sci.kdl if present, then exclusions derived from the project's
// .gitignore and build configuration files.
func Load(root string) (*Config, error) {
	return LoadFrom(root, "")
}

// LoadFrom is Load with an explicit config file path. An empty path means
// the usual .sci.kdl lookup under root; a non-empty path must exist.
func LoadFrom(root, configPath string) (*Config, error) {
	var cfg *Config
	var err error
	if configPath != "" {
		cfg, err = LoadKDLFile(configPath, root)
	} else {
		cfg, err = LoadKDL(root)
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default(root)
	}
	cfg.Exclude = append(cfg.Exclude, GitignoreExcludes(cfg.Project.Root)...)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// Workers returns the effective extraction worker count.
func (c *Config) Workers() int {
	if c.Performance.ParallelFileWorkers > 0 {
		return c.Performance.ParallelFileWorkers
	}
	return runtime.NumCPU()
}

// IndexPath returns the location of the persisted document for this root.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Project.Root, IndexDirName, IndexFileName)
}

// Validate checks value ranges and that the root exists.
func (c *Config) Validate() error {
	if c.Index.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.Index.MaxFileSize)
	}
	if c.Index.WatchDebounceMs < 0 {
		return fmt.Errorf("watch_debounce_ms must not be negative, got %d", c.Index.WatchDebounceMs)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in [0,1], got %v", c.Search.FuzzyThreshold)
	}
	info, err := os.Stat(c.Project.Root)
	if err != nil {
		return fmt.Errorf("project root %s: %w", c.Project.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root %s is not a directory", c.Project.Root)
	}
	return nil
}

// EnrichExclusionsWithBuildArtifacts appends output directories detected
// from the project's build configuration files, deduplicated.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	detector := NewBuildArtifactDetector(c.Project.Root)
	c.Exclude = DeduplicatePatterns(append(c.Exclude, detector.DetectOutputDirectories()...))
}
