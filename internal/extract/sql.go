package extract

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/structidx/sci/internal/types"
)

// SQL extracts CREATE statements with a tolerant scanner. It does not parse
// SQL; it recognizes statement openers and tracks parenthesis depth to the
// terminating semicolon, so dialect quirks inside the statement body cannot
// break extraction.
type SQL struct{}

// NewSQL returns the SQL dialect extractor.
func NewSQL() *SQL {
	return &SQL{}
}

// createStmtRe matches CREATE TABLE/VIEW/PROCEDURE/FUNCTION openers in
// comment-scrubbed text. The name may be bare, schema-qualified, or quoted
// in any of the common styles.
var createStmtRe = regexp.MustCompile(
	`(?is)\bCREATE\s+(?:OR\s+REPLACE\s+)?(TABLE|VIEW|PROCEDURE|FUNCTION)\s+(?:IF\s+NOT\s+EXISTS\s+)?` +
		"([A-Za-z_][A-Za-z0-9_.$]*|\"[^\"]+\"|`[^`]+`|\\[[^\\]]+\\])")

// Extract scans src for CREATE statements. Malformed SQL around a statement
// never affects other statements; an unterminated statement runs to EOF.
func (s *SQL) Extract(filePath string, src []byte) ([]types.ComponentRecord, error) {
	text := string(src)
	// Matching runs over a scrubbed copy so commented-out statements are
	// ignored; offsets index the original text, which scrubbing preserves.
	scrubbed := scrubSQLComments(text)
	lines := newLineIndex(text)

	records := []types.ComponentRecord{sqlFileSummary(filePath, text, lines)}
	seen := map[string]int{}

	for _, m := range createStmtRe.FindAllStringSubmatchIndex(scrubbed, -1) {
		start := m[0]
		objType := strings.ToUpper(scrubbed[m[2]:m[3]])
		name := unquoteSQLName(scrubbed[m[4]:m[5]])

		// Repeated CREATEs of one object (drop-and-recreate scripts)
		// still need distinct component IDs.
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + " (" + strconv.Itoa(n) + ")"
		}

		end := findStatementEnd(scrubbed, m[1])

		var kind types.ComponentKind
		switch objType {
		case "TABLE":
			kind = types.KindTable
		case "VIEW":
			kind = types.KindView
		default:
			kind = types.KindFunction
		}

		extra := map[string]any{"dialect": "sql", "object_type": strings.ToLower(objType)}

		records = append(records, types.ComponentRecord{
			ID:            types.ComponentID(filePath, kind, name),
			Kind:          kind,
			Name:          shortSQLName(name),
			QualifiedName: name,
			FilePath:      filePath,
			StartLine:     lines.lineAt(start),
			EndLine:       lines.lineAt(end - 1),
			Summary:       leadingSQLComment(text, lines, start),
			Snippet:       strings.TrimSpace(text[start:end]),
			Extra:         extra,
		})
	}

	return records, nil
}

func sqlFileSummary(filePath, text string, lines *lineIndex) types.ComponentRecord {
	preview := text
	if len(preview) > 500 {
		preview = preview[:500]
	}
	return types.ComponentRecord{
		ID:            types.ComponentID(filePath, types.KindFileSummary, filePath),
		Kind:          types.KindFileSummary,
		Name:          filepath.Base(filePath),
		QualifiedName: filePath,
		FilePath:      filePath,
		StartLine:     1,
		EndLine:       max(lines.count(), 1),
		Summary:       topSQLComment(text, lines),
		Snippet:       preview,
		Extra: map[string]any{
			"language": "sql",
			"size":     len(text),
		},
	}
}

// findStatementEnd advances from pos to the first ';' at parenthesis depth
// zero, skipping string literals. Returns len(s) for unterminated
// statements.
func findStatementEnd(s string, pos int) int {
	depth := 0
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\'':
			i = skipSQLString(s, i)
		case ';':
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}

// skipSQLString returns the index of the closing quote of the literal
// starting at i, honoring doubled-quote escapes.
func skipSQLString(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == '\'' {
			if j+1 < len(s) && s[j+1] == '\'' {
				j++
				continue
			}
			return j
		}
	}
	return len(s) - 1
}

// scrubSQLComments blanks -- and /* */ comments, preserving newlines so
// offsets and line numbers stay aligned with the original text.
func scrubSQLComments(s string) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		switch out[i] {
		case '\'':
			i = skipSQLString(s, i)
		case '-':
			if i+1 < len(out) && out[i+1] == '-' {
				for i < len(out) && out[i] != '\n' {
					out[i] = ' '
					i++
				}
			}
		case '/':
			if i+1 < len(out) && out[i+1] == '*' {
				out[i] = ' '
				out[i+1] = ' '
				j := i + 2
				for j < len(out) {
					if j+1 < len(out) && out[j] == '*' && out[j+1] == '/' {
						out[j] = ' '
						out[j+1] = ' '
						j += 2
						break
					}
					if out[j] != '\n' {
						out[j] = ' '
					}
					j++
				}
				i = j - 1
			}
		}
	}
	return string(out)
}

// leadingSQLComment collects the contiguous block of -- comment lines
// immediately above the line containing pos.
func leadingSQLComment(text string, lines *lineIndex, pos int) string {
	line := lines.lineAt(pos) - 1 // zero-based line of pos
	var parts []string
	for ln := line - 1; ln >= 0; ln-- {
		content := strings.TrimSpace(lines.lineText(text, ln))
		if !strings.HasPrefix(content, "--") {
			break
		}
		parts = append([]string{strings.TrimSpace(strings.TrimPrefix(content, "--"))}, parts...)
	}
	return strings.Join(parts, " ")
}

// topSQLComment collects the comment block at the very top of the file.
func topSQLComment(text string, lines *lineIndex) string {
	var parts []string
	for ln := 0; ln < lines.count(); ln++ {
		content := strings.TrimSpace(lines.lineText(text, ln))
		if content == "" && len(parts) == 0 {
			continue
		}
		if !strings.HasPrefix(content, "--") {
			break
		}
		parts = append(parts, strings.TrimSpace(strings.TrimPrefix(content, "--")))
	}
	return strings.Join(parts, " ")
}

func unquoteSQLName(name string) string {
	if len(name) >= 2 {
		switch {
		case name[0] == '"' && name[len(name)-1] == '"',
			name[0] == '`' && name[len(name)-1] == '`':
			return name[1 : len(name)-1]
		case name[0] == '[' && name[len(name)-1] == ']':
			return name[1 : len(name)-1]
		}
	}
	return name
}

func shortSQLName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int // byte offset of each line start
}

func newLineIndex(s string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (li *lineIndex) lineAt(offset int) int {
	if offset < 0 {
		offset = 0
	}
	return sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	})
}

func (li *lineIndex) count() int {
	return len(li.starts)
}

// lineText returns the content of the zero-based line ln.
func (li *lineIndex) lineText(s string, ln int) string {
	if ln < 0 || ln >= len(li.starts) {
		return ""
	}
	start := li.starts[ln]
	end := len(s)
	if ln+1 < len(li.starts) {
		end = li.starts[ln+1] - 1
	}
	if end < start {
		end = start
	}
	return s[start:end]
}
