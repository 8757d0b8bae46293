// Gitignore-derived exclusions. A project's .gitignore already names the
// trees its authors consider non-source, so its simple patterns are folded
// into the exclusion list as doublestar globs.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// GitignoreExcludes reads .gitignore at projectRoot and converts its
// patterns to exclusion globs. A missing file yields nothing; negation
// patterns (!) are skipped since the exclusion list has no un-exclude
// semantics.
func GitignoreExcludes(projectRoot string) []string {
	file, err := os.Open(filepath.Join(projectRoot, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		if g := gitignoreLineToGlob(line); g != "" {
			patterns = append(patterns, g)
		}
	}
	return patterns
}

// gitignoreLineToGlob maps one gitignore line onto a doublestar pattern.
// As in git, a pattern containing a slash is anchored at the root while a
// bare name matches at any depth, and a trailing slash marks a directory,
// which excludes everything beneath it.
func gitignoreLineToGlob(line string) string {
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")

	isDir := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	if line == "" {
		return ""
	}

	if !anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}
	if isDir {
		return line + "/**"
	}
	return line
}
