package extract

import (
	"path/filepath"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/structidx/sci/internal/debug"
	"github.com/structidx/sci/internal/types"
)

// routeDecoratorNames are the decorator attribute names recognized as HTTP
// route registrations: app.route(...) plus the method shorthands used by
// Flask 2 and FastAPI.
var routeDecoratorNames = map[string]bool{
	"route":  true,
	"get":    true,
	"post":   true,
	"put":    true,
	"delete": true,
	"patch":  true,
}

// modelBaseNames are base classes that mark a class as an ORM model.
var modelBaseNames = map[string]bool{
	"Base":            true,
	"DeclarativeBase": true,
	"SQLModel":        true,
}

// Python extracts functions, classes, routes, and models from Python source
// using the tree-sitter grammar.
type Python struct{}

// NewPython returns the Python dialect extractor.
func NewPython() *Python {
	return &Python{}
}

// Extract parses src and emits one file_summary plus a record per
// definition. Files with syntax errors yield whatever parsed cleanly, with
// the file_summary flagged; a file that cannot be parsed at all yields just
// the flagged summary. Never panics past this boundary.
func (p *Python) Extract(filePath string, src []byte) (records []types.ComponentRecord, err error) {
	// Protection against tree-sitter crashes: a panic in the C library
	// degrades to a flagged file summary instead of killing the build.
	defer func() {
		if r := recover(); r != nil {
			debug.LogExtraction("TREE-SITTER PANIC in file %s: %v", filePath, r)
			records = []types.ComponentRecord{pythonFailureSummary(filePath, src)}
			err = nil
		}
	}()

	parser := tree_sitter.NewParser()
	defer parser.Close()
	language := tree_sitter.NewLanguage(tree_sitter_python.Language())
	if serr := parser.SetLanguage(language); serr != nil {
		return []types.ComponentRecord{pythonFailureSummary(filePath, src)}, nil
	}

	// Tree-sitter mutates input buffers via CGO; parse a copy.
	parserBuffer := make([]byte, len(src))
	copy(parserBuffer, src)

	tree := parser.Parse(parserBuffer, nil)
	if tree == nil {
		return []types.ComponentRecord{pythonFailureSummary(filePath, src)}, nil
	}
	defer tree.Close()

	root := tree.RootNode()

	v := &pyVisitor{src: parserBuffer, path: filePath, seen: map[string]int{}}
	summary := v.fileSummary(root, root.HasError())
	records = append(records, summary)
	v.visitChildren(root, "", summary.ID)
	records = append(records, v.records...)
	return records, nil
}

// pythonFailureSummary is the single record emitted for an unparseable file.
func pythonFailureSummary(filePath string, src []byte) types.ComponentRecord {
	name := filepath.Base(filePath)
	return types.ComponentRecord{
		ID:            types.ComponentID(filePath, types.KindFileSummary, filePath),
		Kind:          types.KindFileSummary,
		Name:          name,
		QualifiedName: filePath,
		FilePath:      filePath,
		StartLine:     1,
		EndLine:       max(countLines(src), 1),
		Extra: map[string]any{
			"language":    "python",
			"parse_error": true,
			"size":        len(src),
		},
	}
}

type pyVisitor struct {
	src     []byte
	path    string
	records []types.ComponentRecord
	seen    map[string]int
}

// uniqueQual suffixes repeated qualified names so shadowed definitions
// (platform-conditional defs under if/else both survive parsing) still get
// distinct component IDs.
func (v *pyVisitor) uniqueQual(qualified string) string {
	v.seen[qualified]++
	if n := v.seen[qualified]; n > 1 {
		return qualified + " (" + strconv.Itoa(n) + ")"
	}
	return qualified
}

func (v *pyVisitor) text(n *tree_sitter.Node) string {
	return string(v.src[n.StartByte():n.EndByte()])
}

// fileSummary builds the module-level record: docstring, imports, size.
func (v *pyVisitor) fileSummary(root *tree_sitter.Node, parseError bool) types.ComponentRecord {
	extra := map[string]any{
		"language": "python",
		"size":     len(v.src),
	}
	if parseError {
		extra["parse_error"] = true
	}

	var imports []string
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		switch child.Kind() {
		case "import_statement", "import_from_statement":
			imports = append(imports, firstLine(v.text(child)))
		}
	}
	if len(imports) > 0 {
		extra["imports"] = imports
	}

	return types.ComponentRecord{
		ID:            types.ComponentID(v.path, types.KindFileSummary, v.path),
		Kind:          types.KindFileSummary,
		Name:          filepath.Base(v.path),
		QualifiedName: v.path,
		FilePath:      v.path,
		StartLine:     1,
		EndLine:       max(countLines(v.src), 1),
		Summary:       firstLine(v.moduleDocstring(root)),
		Extra:         extra,
	}
}

// moduleDocstring returns the leading string expression of the module.
func (v *pyVisitor) moduleDocstring(root *tree_sitter.Node) string {
	if root.NamedChildCount() == 0 {
		return ""
	}
	first := root.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Kind() != "string" {
		return ""
	}
	return stripPyString(v.text(str))
}

// visitChildren walks named children of node, emitting definition records.
// qualPrefix is the dotted scope, parentID the enclosing record's ID.
func (v *pyVisitor) visitChildren(node *tree_sitter.Node, qualPrefix, parentID string) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		v.visit(node.NamedChild(i), qualPrefix, parentID, nil)
	}
}

func (v *pyVisitor) visit(node *tree_sitter.Node, qualPrefix, parentID string, decorators []*tree_sitter.Node) {
	switch node.Kind() {
	case "decorated_definition":
		var decs []*tree_sitter.Node
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if child := node.NamedChild(i); child.Kind() == "decorator" {
				decs = append(decs, child)
			}
		}
		if def := node.ChildByFieldName("definition"); def != nil {
			v.visit(def, qualPrefix, parentID, decs)
		}
	case "function_definition":
		v.handleFunction(node, qualPrefix, parentID, decorators)
	case "class_definition":
		v.handleClass(node, qualPrefix, parentID, decorators)
	default:
		// if/try/with blocks at module level can hide definitions
		v.visitChildren(node, qualPrefix, parentID)
	}
}

func (v *pyVisitor) handleFunction(node *tree_sitter.Node, qualPrefix, parentID string, decorators []*tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := v.text(nameNode)
	qualified := v.uniqueQual(joinQual(qualPrefix, name))

	signature := "def " + name
	if params := node.ChildByFieldName("parameters"); params != nil {
		signature = "def " + name + v.text(params)
	}

	kind := types.KindFunction
	extra := map[string]any{}
	if texts := decoratorTexts(v, decorators); len(texts) > 0 {
		extra["decorators"] = texts
	}
	if path, methods, ok := v.routeFromDecorators(decorators); ok {
		kind = types.KindRoute
		extra["path"] = path
		if len(methods) > 0 {
			extra["methods"] = methods
		}
	}
	if len(extra) == 0 {
		extra = nil
	}

	rec := types.ComponentRecord{
		ID:            types.ComponentID(v.path, kind, qualified),
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		FilePath:      v.path,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
		Summary:       firstLine(v.docstring(node)),
		Snippet:       signature,
		ParentID:      parentID,
		Extra:         extra,
	}
	v.records = append(v.records, rec)

	if body := node.ChildByFieldName("body"); body != nil {
		v.visitChildren(body, qualified, rec.ID)
	}
}

func (v *pyVisitor) handleClass(node *tree_sitter.Node, qualPrefix, parentID string, decorators []*tree_sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := v.text(nameNode)
	qualified := v.uniqueQual(joinQual(qualPrefix, name))

	var bases []string
	if sup := node.ChildByFieldName("superclasses"); sup != nil {
		for i := uint(0); i < sup.NamedChildCount(); i++ {
			arg := sup.NamedChild(i)
			switch arg.Kind() {
			case "identifier", "attribute":
				bases = append(bases, v.text(arg))
			}
		}
	}

	kind := types.KindClass
	if isModelClass(bases) {
		kind = types.KindModel
	}

	extra := map[string]any{}
	if len(bases) > 0 {
		extra["bases"] = bases
	}
	if texts := decoratorTexts(v, decorators); len(texts) > 0 {
		extra["decorators"] = texts
	}

	signature := "class " + name
	if len(bases) > 0 {
		signature += "(" + strings.Join(bases, ", ") + ")"
	}

	body := node.ChildByFieldName("body")
	if kind == types.KindModel && body != nil {
		if cols := v.classColumns(body); len(cols) > 0 {
			extra["columns"] = cols
		}
	}
	if len(extra) == 0 {
		extra = nil
	}

	rec := types.ComponentRecord{
		ID:            types.ComponentID(v.path, kind, qualified),
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		FilePath:      v.path,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
		Summary:       firstLine(v.docstring(node)),
		Snippet:       signature,
		ParentID:      parentID,
		Extra:         extra,
	}
	v.records = append(v.records, rec)

	if body != nil {
		v.visitChildren(body, qualified, rec.ID)
	}
}

// classColumns collects the left-hand names of class-body assignments, the
// way ORM column declarations appear.
func (v *pyVisitor) classColumns(body *tree_sitter.Node) []string {
	var cols []string
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		if stmt.Kind() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Kind() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left != nil && left.Kind() == "identifier" {
			cols = append(cols, v.text(left))
		}
	}
	return cols
}

// docstring returns the leading string expression of a definition body.
func (v *pyVisitor) docstring(def *tree_sitter.Node) string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Kind() != "string" {
		return ""
	}
	return stripPyString(v.text(str))
}

// routeFromDecorators inspects decorators for a route registration call and
// returns the path template and HTTP methods.
func (v *pyVisitor) routeFromDecorators(decorators []*tree_sitter.Node) (string, []string, bool) {
	for _, dec := range decorators {
		for i := uint(0); i < dec.NamedChildCount(); i++ {
			call := dec.NamedChild(i)
			if call.Kind() != "call" {
				continue
			}
			fn := call.ChildByFieldName("function")
			if fn == nil || fn.Kind() != "attribute" {
				continue
			}
			attr := fn.ChildByFieldName("attribute")
			if attr == nil || !routeDecoratorNames[v.text(attr)] {
				continue
			}

			args := call.ChildByFieldName("arguments")
			if args == nil {
				continue
			}
			path := ""
			var methods []string
			for j := uint(0); j < args.NamedChildCount(); j++ {
				arg := args.NamedChild(j)
				switch arg.Kind() {
				case "string":
					if path == "" {
						path = stripPyString(v.text(arg))
					}
				case "keyword_argument":
					kwName := arg.ChildByFieldName("name")
					kwValue := arg.ChildByFieldName("value")
					if kwName == nil || kwValue == nil || v.text(kwName) != "methods" {
						continue
					}
					for k := uint(0); k < kwValue.NamedChildCount(); k++ {
						if el := kwValue.NamedChild(k); el.Kind() == "string" {
							methods = append(methods, strings.ToUpper(stripPyString(v.text(el))))
						}
					}
				}
			}
			if path == "" {
				continue
			}
			// method shorthands imply their verb
			if verb := v.text(attr); verb != "route" && len(methods) == 0 {
				methods = []string{strings.ToUpper(verb)}
			}
			return path, methods, true
		}
	}
	return "", nil, false
}

func decoratorTexts(v *pyVisitor, decorators []*tree_sitter.Node) []string {
	if len(decorators) == 0 {
		return nil
	}
	out := make([]string, 0, len(decorators))
	for _, d := range decorators {
		out = append(out, firstLine(v.text(d)))
	}
	return out
}

func isModelClass(bases []string) bool {
	for _, b := range bases {
		if modelBaseNames[b] || strings.Contains(b, "Model") {
			return true
		}
		if strings.HasSuffix(b, ".Base") {
			return true
		}
	}
	return false
}

func joinQual(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// stripPyString removes string prefixes and quotes from a Python string
// literal, handling triple quotes.
func stripPyString(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}
