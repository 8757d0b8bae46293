package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeKDL(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".sci.kdl"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write .sci.kdl: %v", err)
	}
}

func TestLoadKDLMissingFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if cfg != nil {
		t.Fatalf("Expected nil config for missing file")
	}
}

func TestLoadKDLFullConfig(t *testing.T) {
	dir := t.TempDir()
	writeKDL(t, dir, `
project {
    name "myapp"
}
index {
    max_file_size "2MB"
    follow_symlinks true
    watch_mode true
    watch_debounce_ms 250
}
performance {
    parallel_file_workers 3
}
search {
    max_results 25
    enable_fuzzy false
    fuzzy_threshold 0.9
}
exclude "**/generated/**" "**/fixtures/**"
`)

	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("LoadKDL failed: %v", err)
	}

	if cfg.Project.Name != "myapp" {
		t.Errorf("Expected project name 'myapp', got %q", cfg.Project.Name)
	}
	if cfg.Index.MaxFileSize != 2*1024*1024 {
		t.Errorf("Expected max_file_size 2MB, got %d", cfg.Index.MaxFileSize)
	}
	if !cfg.Index.FollowSymlinks {
		t.Errorf("Expected follow_symlinks true")
	}
	if !cfg.Index.WatchMode || cfg.Index.WatchDebounceMs != 250 {
		t.Errorf("Expected watch_mode/250, got %v/%d", cfg.Index.WatchMode, cfg.Index.WatchDebounceMs)
	}
	if cfg.Performance.ParallelFileWorkers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Performance.ParallelFileWorkers)
	}
	if cfg.Search.MaxResults != 25 || cfg.Search.EnableFuzzy || cfg.Search.FuzzyThreshold != 0.9 {
		t.Errorf("Unexpected search config: %+v", cfg.Search)
	}

	// Custom excludes extend the defaults rather than replacing them.
	found := map[string]bool{}
	for _, p := range cfg.Exclude {
		found[p] = true
	}
	for _, want := range []string{"**/generated/**", "**/fixtures/**", "**/__pycache__/**"} {
		if !found[want] {
			t.Errorf("Expected exclude pattern %q to be present", want)
		}
	}
}

func TestLoadKDLExcludeBlockFormat(t *testing.T) {
	dir := t.TempDir()
	writeKDL(t, dir, `
exclude {
    "**/migrations/**"
    "**/tmp/**"
}
`)

	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("LoadKDL failed: %v", err)
	}

	found := map[string]bool{}
	for _, p := range cfg.Exclude {
		found[p] = true
	}
	if !found["**/migrations/**"] || !found["**/tmp/**"] {
		t.Errorf("Expected block-format exclude patterns, got %v", cfg.Exclude)
	}
}

func TestLoadKDLRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeKDL(t, dir, `
project {
    root "src"
}
`)

	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("LoadKDL failed: %v", err)
	}
	if cfg.Project.Root != sub {
		t.Errorf("Expected root %s, got %s", sub, cfg.Project.Root)
	}
}

func TestLoadKDLTruncatedDocumentKeepsDefaults(t *testing.T) {
	// kdl-go tolerates a document cut off mid-node. The setting with no
	// value must fall back to its default instead of failing the load.
	dir := t.TempDir()
	writeKDL(t, dir, `index { max_file_size `)

	cfg, err := LoadKDL(dir)
	if err != nil {
		t.Fatalf("LoadKDL failed on truncated document: %v", err)
	}
	if cfg == nil {
		t.Fatalf("Expected a config from the truncated document")
	}
	if cfg.Index.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("Expected default max_file_size %d, got %d", int64(DefaultMaxFileSize), cfg.Index.MaxFileSize)
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10MB", 10 * 1024 * 1024},
		{"500KB", 500 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"123B", 123},
		{"42", 42},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		if err != nil {
			t.Errorf("parseSize(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := parseSize("huge"); err == nil {
		t.Errorf("Expected error for non-numeric size")
	}
}

func TestLoadKDLFileExplicitPath(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	path := filepath.Join(other, "custom.kdl")
	if err := os.WriteFile(path, []byte(`search {
    max_results 25
}
`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadKDLFile(path, root)
	if err != nil {
		t.Fatalf("LoadKDLFile failed: %v", err)
	}
	if cfg.Search.MaxResults != 25 {
		t.Errorf("Expected max_results 25, got %d", cfg.Search.MaxResults)
	}
	if cfg.Project.Root != root {
		t.Errorf("Expected root %s, got %s", root, cfg.Project.Root)
	}
}

func TestLoadKDLFileMissingIsError(t *testing.T) {
	root := t.TempDir()

	if _, err := LoadKDLFile(filepath.Join(root, "nope.kdl"), root); err == nil {
		t.Fatalf("Expected error for missing explicit config file")
	}
}

func TestLoadFromFallsBackToDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadFrom(root, "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Search.MaxResults != DefaultMaxResults {
		t.Errorf("Expected default max_results, got %d", cfg.Search.MaxResults)
	}
}
