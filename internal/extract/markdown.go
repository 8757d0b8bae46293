package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/structidx/sci/internal/types"
)

// Markdown extracts document sections from ATX headings. Headings inside
// fenced code blocks are ignored. Sections nest by heading level, with
// parent_id pointing at the nearest shallower heading.
type Markdown struct{}

// NewMarkdown returns the Markdown dialect extractor.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

var atxHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

type mdHeading struct {
	level int
	title string
	line  int // 1-based
}

// Extract never fails: any text is valid Markdown.
func (m *Markdown) Extract(filePath string, src []byte) ([]types.ComponentRecord, error) {
	lines := strings.Split(string(src), "\n")

	headings := collectHeadings(lines)

	records := []types.ComponentRecord{mdFileSummary(filePath, src, lines, headings)}

	// Stack of indexes into records for parent resolution.
	type open struct {
		level int
		id    string
		qual  string
	}
	var stack []open
	seen := map[string]int{}

	for i, h := range headings {
		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}

		// Only a shallower heading can be the parent; top-level
		// headings have none.
		parentID := ""
		qual := h.title
		if len(stack) > 0 {
			parentID = stack[len(stack)-1].id
			qual = stack[len(stack)-1].qual + " > " + h.title
		}
		// Repeated headings under the same parent get a stable suffix.
		seen[qual]++
		if n := seen[qual]; n > 1 {
			qual = qual + " (" + strconv.Itoa(n) + ")"
		}

		endLine := len(lines)
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				endLine = next.line - 1
				break
			}
		}

		rec := types.ComponentRecord{
			ID:            types.ComponentID(filePath, types.KindDocSection, qual),
			Kind:          types.KindDocSection,
			Name:          h.title,
			QualifiedName: qual,
			FilePath:      filePath,
			StartLine:     h.line,
			EndLine:       endLine,
			Summary:       firstParagraphLine(lines, h.line, endLine),
			Snippet:       strings.Repeat("#", h.level) + " " + h.title,
			ParentID:      parentID,
			Extra:         map[string]any{"level": h.level},
		}
		records = append(records, rec)
		stack = append(stack, open{level: h.level, id: rec.ID, qual: qual})
	}

	return records, nil
}

// collectHeadings scans for ATX headings outside fenced code blocks.
func collectHeadings(lines []string) []mdHeading {
	var headings []mdHeading
	inFence := false
	fenceMarker := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if marker := fenceOf(trimmed); marker != "" {
			if !inFence {
				inFence = true
				fenceMarker = marker
			} else if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
			continue
		}
		if inFence {
			continue
		}
		if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
			headings = append(headings, mdHeading{
				level: len(m[1]),
				title: m[2],
				line:  i + 1,
			})
		}
	}
	return headings
}

func fenceOf(trimmed string) string {
	if strings.HasPrefix(trimmed, "```") {
		return "```"
	}
	if strings.HasPrefix(trimmed, "~~~") {
		return "~~~"
	}
	return ""
}

func mdFileSummary(filePath string, src []byte, lines []string, headings []mdHeading) types.ComponentRecord {
	title := filepath.Base(filePath)
	summaryFrom := 0
	for _, h := range headings {
		if h.level == 1 {
			title = h.title
			summaryFrom = h.line
			break
		}
	}

	return types.ComponentRecord{
		ID:            types.ComponentID(filePath, types.KindFileSummary, filePath),
		Kind:          types.KindFileSummary,
		Name:          filepath.Base(filePath),
		QualifiedName: filePath,
		FilePath:      filePath,
		StartLine:     1,
		EndLine:       max(len(lines), 1),
		Summary:       firstParagraphLine(lines, summaryFrom, len(lines)),
		Extra: map[string]any{
			"language": "markdown",
			"size":     len(src),
			"title":    title,
		},
	}
}

// firstParagraphLine returns the first non-blank body line between the
// given 1-based heading line and end, skipping further headings and fences.
func firstParagraphLine(lines []string, afterLine, endLine int) string {
	inFence := false
	for i := afterLine; i < endLine && i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if fenceOf(trimmed) != "" {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return trimmed
	}
	return ""
}
