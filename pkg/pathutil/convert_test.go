package pathutil

import (
	"path/filepath"
	"testing"
)

func TestToRelative(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "home", "dev", "project")

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"inside root", filepath.Join(root, "app", "models.py"), "app/models.py"},
		{"root itself", root, "."},
		{"already relative", "app/models.py", "app/models.py"},
		{"outside root", filepath.Join(string(filepath.Separator), "etc", "hosts"), filepath.ToSlash(filepath.Join(string(filepath.Separator), "etc", "hosts"))},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToRelative(tt.path, root)
			if got != tt.expected {
				t.Errorf("ToRelative(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestToRelativeEmptyRoot(t *testing.T) {
	if got := ToRelative("/a/b", ""); got != "/a/b" {
		t.Errorf("Expected pass-through, got %q", got)
	}
}

func TestToAbsolute(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "home", "dev", "project")

	got := ToAbsolute("app/models.py", root)
	want := filepath.Join(root, "app", "models.py")
	if got != want {
		t.Errorf("ToAbsolute = %q, want %q", got, want)
	}

	abs := filepath.Join(root, "x.py")
	if got := ToAbsolute(abs, root); got != abs {
		t.Errorf("Absolute input must pass through, got %q", got)
	}
}
