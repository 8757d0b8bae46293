package extract

import (
	"testing"

	"github.com/structidx/sci/internal/types"
)

const pythonSample = `"""User service module."""

import os
from flask import Flask, jsonify

app = Flask(__name__)


class User(db.Model):
    """A registered user."""

    id = db.Column(db.Integer, primary_key=True)
    name = db.Column(db.String(80))

    def display_name(self):
        """Return the printable name."""
        return self.name.title()


@app.route("/users/<int:user_id>", methods=["GET", "POST"])
def get_user(user_id):
    """Fetch a single user."""
    return jsonify({})


def helper():
    pass
`

func extractPython(t *testing.T, src string) []types.ComponentRecord {
	t.Helper()
	records, err := NewPython().Extract("app/service.py", []byte(src))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return records
}

func findByName(records []types.ComponentRecord, name string) *types.ComponentRecord {
	for i := range records {
		if records[i].Name == name {
			return &records[i]
		}
	}
	return nil
}

func TestPythonFileSummary(t *testing.T) {
	records := extractPython(t, pythonSample)

	if len(records) == 0 || records[0].Kind != types.KindFileSummary {
		t.Fatalf("Expected first record to be the file summary, got %+v", records)
	}
	fs := records[0]
	if fs.Summary != "User service module." {
		t.Errorf("Expected module docstring summary, got %q", fs.Summary)
	}
	if fs.Name != "service.py" || fs.QualifiedName != "app/service.py" {
		t.Errorf("Unexpected summary identity: %q / %q", fs.Name, fs.QualifiedName)
	}
	imports, _ := fs.Extra["imports"].([]string)
	if len(imports) != 2 {
		t.Errorf("Expected 2 imports, got %v", fs.Extra["imports"])
	}
	if _, flagged := fs.Extra["parse_error"]; flagged {
		t.Errorf("Expected no parse_error flag for valid source")
	}
}

func TestPythonModelExtraction(t *testing.T) {
	records := extractPython(t, pythonSample)

	user := findByName(records, "User")
	if user == nil {
		t.Fatalf("Expected a record for class User")
	}
	if user.Kind != types.KindModel {
		t.Errorf("Expected db.Model subclass to be kind model, got %s", user.Kind)
	}
	if user.Summary != "A registered user." {
		t.Errorf("Expected class docstring summary, got %q", user.Summary)
	}
	cols, _ := user.Extra["columns"].([]string)
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "name" {
		t.Errorf("Expected columns [id name], got %v", user.Extra["columns"])
	}

	method := findByName(records, "display_name")
	if method == nil {
		t.Fatalf("Expected a record for method display_name")
	}
	if method.Kind != types.KindFunction {
		t.Errorf("Expected method kind function, got %s", method.Kind)
	}
	if method.QualifiedName != "User.display_name" {
		t.Errorf("Expected qualified name User.display_name, got %q", method.QualifiedName)
	}
	if method.ParentID != user.ID {
		t.Errorf("Expected method parent to be the class record")
	}
}

func TestPythonRouteExtraction(t *testing.T) {
	records := extractPython(t, pythonSample)

	route := findByName(records, "get_user")
	if route == nil {
		t.Fatalf("Expected a record for get_user")
	}
	if route.Kind != types.KindRoute {
		t.Errorf("Expected route kind, got %s", route.Kind)
	}
	if route.Extra["path"] != "/users/<int:user_id>" {
		t.Errorf("Expected route path, got %v", route.Extra["path"])
	}
	methods, _ := route.Extra["methods"].([]string)
	if len(methods) != 2 || methods[0] != "GET" || methods[1] != "POST" {
		t.Errorf("Expected methods [GET POST], got %v", route.Extra["methods"])
	}
	if route.Summary != "Fetch a single user." {
		t.Errorf("Expected docstring summary, got %q", route.Summary)
	}

	plain := findByName(records, "helper")
	if plain == nil || plain.Kind != types.KindFunction {
		t.Errorf("Expected undecorated function to stay kind function")
	}
}

func TestPythonMethodShorthandRoute(t *testing.T) {
	src := `
@router.get("/items")
def list_items():
    return []
`
	records := extractPython(t, src)

	route := findByName(records, "list_items")
	if route == nil || route.Kind != types.KindRoute {
		t.Fatalf("Expected shorthand decorator to produce a route, got %+v", route)
	}
	methods, _ := route.Extra["methods"].([]string)
	if len(methods) != 1 || methods[0] != "GET" {
		t.Errorf("Expected implied method [GET], got %v", route.Extra["methods"])
	}
}

func TestPythonSyntaxErrorDegradesGracefully(t *testing.T) {
	src := `def broken(:
    pass

class Ok:
    pass
`
	records := extractPython(t, src)

	if len(records) == 0 {
		t.Fatalf("Expected at least the file summary")
	}
	fs := records[0]
	if fs.Kind != types.KindFileSummary {
		t.Fatalf("Expected file summary first, got %s", fs.Kind)
	}
	if flagged, _ := fs.Extra["parse_error"].(bool); !flagged {
		t.Errorf("Expected parse_error flag on file summary")
	}
	// The cleanly parsed class should still come through.
	if ok := findByName(records, "Ok"); ok == nil {
		t.Errorf("Expected class Ok to be extracted despite earlier syntax error")
	}
}

func TestPythonStableIDs(t *testing.T) {
	first := extractPython(t, pythonSample)
	second := extractPython(t, pythonSample)

	if len(first) != len(second) {
		t.Fatalf("Expected identical record counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("Record %d ID changed between runs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestPythonNestedFunctions(t *testing.T) {
	src := `def outer():
    def inner():
        pass
`
	records := extractPython(t, src)

	outer := findByName(records, "outer")
	inner := findByName(records, "inner")
	if outer == nil || inner == nil {
		t.Fatalf("Expected both outer and inner functions")
	}
	if inner.QualifiedName != "outer.inner" {
		t.Errorf("Expected qualified name outer.inner, got %q", inner.QualifiedName)
	}
	if inner.ParentID != outer.ID {
		t.Errorf("Expected inner's parent to be outer")
	}
}

func TestPythonEmptyFile(t *testing.T) {
	records := extractPython(t, "")

	if len(records) != 1 || records[0].Kind != types.KindFileSummary {
		t.Fatalf("Expected only a file summary for empty source, got %+v", records)
	}
}

func TestPythonConditionalRedefinitionsGetDistinctIDs(t *testing.T) {
	src := `import os

if os.name == "nt":
    def flush():
        return "windows"
else:
    def flush():
        return "posix"
`
	records := extractPython(t, src)

	var flushes []types.ComponentRecord
	for _, r := range records {
		if r.Name == "flush" {
			flushes = append(flushes, r)
		}
	}
	if len(flushes) != 2 {
		t.Fatalf("Expected both flush definitions, got %d", len(flushes))
	}
	if flushes[0].ID == flushes[1].ID {
		t.Errorf("Redefined functions share ID %s", flushes[0].ID)
	}
	if flushes[0].QualifiedName == flushes[1].QualifiedName {
		t.Errorf("Redefined functions share qualified name %q", flushes[0].QualifiedName)
	}
}
