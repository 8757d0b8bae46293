package extract

import (
	"testing"

	"github.com/structidx/sci/internal/types"
)

const markdownSample = "# Guide\n" +
	"\n" +
	"Intro paragraph.\n" +
	"\n" +
	"## Install\n" +
	"\n" +
	"Run the installer.\n" +
	"\n" +
	"```bash\n" +
	"# not a heading\n" +
	"```\n" +
	"\n" +
	"## Usage\n" +
	"\n" +
	"### Flags\n" +
	"\n" +
	"Details here.\n" +
	"\n" +
	"## Install\n"

func extractMarkdown(t *testing.T, src string) []types.ComponentRecord {
	t.Helper()
	records, err := NewMarkdown().Extract("docs/guide.md", []byte(src))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return records
}

func TestMarkdownFileSummary(t *testing.T) {
	records := extractMarkdown(t, markdownSample)

	fs := records[0]
	if fs.Kind != types.KindFileSummary {
		t.Fatalf("Expected file summary first, got %s", fs.Kind)
	}
	if fs.Extra["title"] != "Guide" {
		t.Errorf("Expected title from first H1, got %v", fs.Extra["title"])
	}
	if fs.Summary != "Intro paragraph." {
		t.Errorf("Expected first paragraph summary, got %q", fs.Summary)
	}
}

func TestMarkdownSectionHierarchy(t *testing.T) {
	records := extractMarkdown(t, markdownSample)

	guide := findByName(records, "Guide")
	usage := findByName(records, "Usage")
	flags := findByName(records, "Flags")
	if guide == nil || usage == nil || flags == nil {
		t.Fatalf("Expected Guide, Usage, and Flags sections")
	}

	if usage.ParentID != guide.ID {
		t.Errorf("Expected Usage to nest under Guide")
	}
	if flags.ParentID != usage.ID {
		t.Errorf("Expected Flags to nest under Usage")
	}
	if flags.QualifiedName != "Guide > Usage > Flags" {
		t.Errorf("Unexpected qualified name %q", flags.QualifiedName)
	}
	if guide.ParentID != "" {
		t.Errorf("Top-level heading must have no parent, got %q", guide.ParentID)
	}
	if level, _ := flags.Extra["level"].(int); level != 3 {
		t.Errorf("Expected level 3, got %v", flags.Extra["level"])
	}
	if flags.Summary != "Details here." {
		t.Errorf("Expected section body summary, got %q", flags.Summary)
	}
}

func TestMarkdownSiblingTopLevelHeadingsHaveNoParent(t *testing.T) {
	src := "# Setup\n\n## Install\n\nsteps\n\n# Usage\n\nrun it\n"
	records := extractMarkdown(t, src)

	setup := findByName(records, "Setup")
	install := findByName(records, "Install")
	usage := findByName(records, "Usage")
	if setup == nil || install == nil || usage == nil {
		t.Fatalf("Expected Setup, Install, and Usage sections")
	}
	if setup.ParentID != "" {
		t.Errorf("Setup must have no parent, got %q", setup.ParentID)
	}
	if usage.ParentID != "" {
		t.Errorf("Usage must have no parent, got %q", usage.ParentID)
	}
	if install.ParentID != setup.ID {
		t.Errorf("Install must nest under Setup")
	}
}

func TestMarkdownFencedHeadingIgnored(t *testing.T) {
	records := extractMarkdown(t, markdownSample)

	if rec := findByName(records, "not a heading"); rec != nil {
		t.Errorf("Expected heading inside code fence to be ignored")
	}
}

func TestMarkdownSectionBoundaries(t *testing.T) {
	records := extractMarkdown(t, markdownSample)

	var install *types.ComponentRecord
	for i := range records {
		if records[i].Name == "Install" {
			install = &records[i]
			break
		}
	}
	if install == nil {
		t.Fatalf("Expected Install section")
	}
	if install.StartLine != 5 {
		t.Errorf("Expected Install at line 5, got %d", install.StartLine)
	}
	// Ends on the line before "## Usage" (line 13).
	if install.EndLine != 12 {
		t.Errorf("Expected Install to end at line 12, got %d", install.EndLine)
	}
}

func TestMarkdownDuplicateHeadings(t *testing.T) {
	records := extractMarkdown(t, markdownSample)

	var quals []string
	for _, r := range records {
		if r.Name == "Install" {
			quals = append(quals, r.QualifiedName)
		}
	}
	if len(quals) != 2 {
		t.Fatalf("Expected two Install sections, got %d", len(quals))
	}
	if quals[0] == quals[1] {
		t.Errorf("Expected duplicate headings to get distinct qualified names: %v", quals)
	}
	if quals[1] != "Guide > Install (2)" {
		t.Errorf("Expected suffix on second duplicate, got %q", quals[1])
	}
}

func TestMarkdownNoHeadings(t *testing.T) {
	records := extractMarkdown(t, "just some text\nwith no structure\n")

	if len(records) != 1 || records[0].Kind != types.KindFileSummary {
		t.Fatalf("Expected only a file summary, got %+v", records)
	}
	if records[0].Extra["title"] != "guide.md" {
		t.Errorf("Expected filename title fallback, got %v", records[0].Extra["title"])
	}
	if records[0].Summary != "just some text" {
		t.Errorf("Expected first line summary, got %q", records[0].Summary)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()

	cases := map[string]bool{
		"app/main.py":   true,
		"db/schema.SQL": true,
		"README.md":     true,
		"notes.txt":     false,
		"binary.exe":    false,
	}
	for path, want := range cases {
		got := r.For(path) != nil
		if got != want {
			t.Errorf("For(%q) registered=%v, want %v", path, got, want)
		}
	}

	if len(r.Extensions()) != 4 {
		t.Errorf("Expected 4 registered extensions, got %v", r.Extensions())
	}
}
