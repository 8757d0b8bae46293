// Build artifact detection from language-specific configuration files.
// Parses pyproject.toml and Cargo.toml to find output directories that
// should never be walked.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector finds language-specific build output directories
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector creates a new build artifact detector
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories scans for build configuration files and extracts
// output directories as glob patterns (e.g. "**/dist/**").
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string

	patterns = append(patterns, bad.detectPythonOutputs()...)
	patterns = append(patterns, bad.detectRustOutputs()...)

	return patterns
}

// detectPythonOutputs finds Python build outputs declared in pyproject.toml
func (bad *BuildArtifactDetector) detectPythonOutputs() []string {
	var patterns []string

	pyprojectTOML := filepath.Join(bad.projectRoot, "pyproject.toml")
	data, err := os.ReadFile(pyprojectTOML)
	if err != nil {
		return nil
	}

	var pyproject map[string]interface{}
	if toml.Unmarshal(data, &pyproject) != nil {
		return nil
	}

	tool, ok := pyproject["tool"].(map[string]interface{})
	if !ok {
		return nil
	}

	// Poetry custom build target
	if poetry, ok := tool["poetry"].(map[string]interface{}); ok {
		if build, ok := poetry["build"].(map[string]interface{}); ok {
			if targetDir, ok := build["target-dir"].(string); ok {
				patterns = append(patterns, "**/"+targetDir+"/**")
			}
		}
	}

	// Hatch default build directory
	if hatch, ok := tool["hatch"].(map[string]interface{}); ok {
		if build, ok := hatch["build"].(map[string]interface{}); ok {
			if directory, ok := build["directory"].(string); ok {
				patterns = append(patterns, "**/"+directory+"/**")
			}
		}
	}

	return patterns
}

// detectRustOutputs finds Rust build outputs (Cargo.toml)
func (bad *BuildArtifactDetector) detectRustOutputs() []string {
	var patterns []string

	cargoTOML := filepath.Join(bad.projectRoot, "Cargo.toml")
	data, err := os.ReadFile(cargoTOML)
	if err != nil {
		return nil
	}

	var cargo map[string]interface{}
	if toml.Unmarshal(data, &cargo) != nil {
		return nil
	}

	// target/ is the default and covered below either way
	patterns = append(patterns, "**/target/**")

	if profile, ok := cargo["profile"].(map[string]interface{}); ok {
		if release, ok := profile["release"].(map[string]interface{}); ok {
			if targetDir, ok := release["target-dir"].(string); ok {
				patterns = append(patterns, "**/"+targetDir+"/**")
			}
		}
	}

	return patterns
}

// DeduplicatePatterns removes duplicate exclusion patterns
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}

	return result
}
