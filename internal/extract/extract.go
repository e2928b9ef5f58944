// Package extract parses source files with tree-sitter and emits graph
// nodes (functions, methods, classes) and intra-file call edges.
// Cross-file call resolution is out of scope: a call edge is produced
// only when the callee name matches a definition in the same file.
package extract

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"lukechampine.com/blake3"

	"github.com/jward/vigil/internal/graph"
)

const previewLines = 10

// Result is everything extracted from one file.
type Result struct {
	Language string
	Nodes    []graph.Node
	Edges    []graph.Edge
}

// Extractor parses files into graph nodes and edges. Safe for
// concurrent use; each call uses its own parser.
type Extractor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

// Supported reports whether path has a recognized source extension.
func (e *Extractor) Supported(path string) bool {
	_, ok := LanguageForFile(path)
	return ok
}

// definition pairs an extracted graph node with its syntax node, for
// call-site resolution.
type definition struct {
	node graph.Node
	syn  *sitter.Node
}

// ExtractFile parses src and returns the nodes and intra-file call
// edges for path. Unsupported extensions return an error; a file that
// parses but defines nothing returns an empty result.
func (e *Extractor) ExtractFile(ctx context.Context, path string, src []byte) (*Result, error) {
	langName, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("extract %s: unsupported file type", path)
	}
	spec, ok := specForLanguage(langName)
	if !ok {
		return nil, fmt.Errorf("extract %s: no grammar for %s", path, langName)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("extract %s: parse: %w", path, err)
	}
	defer tree.Close()
	root := tree.RootNode()

	defs, err := e.collectDefinitions(spec, path, root, src)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	edges, err := e.collectCalls(spec, root, src, defs)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	res := &Result{Language: langName, Edges: edges}
	for _, d := range defs {
		res.Nodes = append(res.Nodes, d.node)
	}
	e.log.Debug("extracted file", "path", path, "language", langName,
		"nodes", len(res.Nodes), "edges", len(res.Edges))
	return res, nil
}

func (e *Extractor) collectDefinitions(spec *langSpec, path string, root *sitter.Node, src []byte) ([]definition, error) {
	q, err := sitter.NewQuery([]byte(spec.defsQuery), spec.grammar)
	if err != nil {
		return nil, fmt.Errorf("definitions query: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	var defs []definition
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, src)

		var def, nameNode *sitter.Node
		var kind graph.Kind
		for _, c := range match.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "func":
				def, kind = c.Node, graph.KindFunction
			case "method":
				def, kind = c.Node, graph.KindMethod
			case "class":
				def, kind = c.Node, graph.KindClass
			case "name":
				nameNode = c.Node
			}
		}
		if def == nil || nameNode == nil {
			continue
		}
		if kind == graph.KindFunction && spec.classContainer != "" && insideType(def, spec.classContainer) {
			kind = graph.KindMethod
		}

		name := nameNode.Content(src)
		content := strings.TrimSpace(def.Content(src))
		sig := signatureOf(def, src)
		n := graph.Node{
			ID:            graph.NodeID(path, kind, name, int(def.StartPoint().Row)+1, sig),
			StableID:      graph.StableNodeID(path, kind, name),
			Kind:          kind,
			Name:          name,
			FilePath:      path,
			Signature:     sig,
			ContentHash:   contentHash(content),
			Exported:      spec.exported(name),
			Description:   docFor(spec, def, src),
			SourcePreview: preview(content),
			StartLine:     int(def.StartPoint().Row) + 1,
			StartCol:      int(def.StartPoint().Column),
		}
		defs = append(defs, definition{node: n, syn: def})
	}
	return defs, nil
}

func (e *Extractor) collectCalls(spec *langSpec, root *sitter.Node, src []byte, defs []definition) ([]graph.Edge, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	q, err := sitter.NewQuery([]byte(spec.callQuery), spec.grammar)
	if err != nil {
		return nil, fmt.Errorf("calls query: %w", err)
	}
	defer q.Close()

	// Callable names resolve to the first definition with that name.
	byName := make(map[string]string, len(defs))
	for _, d := range defs {
		if d.node.Kind != graph.KindFunction && d.node.Kind != graph.KindMethod {
			continue
		}
		if _, exists := byName[d.node.Name]; !exists {
			byName[d.node.Name] = d.node.ID
		}
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	var edges []graph.Edge
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, src)

		var call, callee *sitter.Node
		for _, c := range match.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "call":
				call = c.Node
			case "callee":
				callee = c.Node
			}
		}
		if call == nil || callee == nil {
			continue
		}
		target, ok := byName[callee.Content(src)]
		if !ok {
			continue
		}
		caller := enclosingDefinition(defs, call)
		if caller == "" {
			continue
		}
		edges = append(edges, graph.Edge{
			Source: caller,
			Target: target,
			Type:   graph.EdgeCalls,
			Line:   int(call.StartPoint().Row) + 1,
			Col:    int(call.StartPoint().Column),
		})
	}
	return edges, nil
}

// insideType reports whether any ancestor of def has the given node
// type.
func insideType(def *sitter.Node, nodeType string) bool {
	for p := def.Parent(); p != nil; p = p.Parent() {
		if p.Type() == nodeType {
			return true
		}
	}
	return false
}

// enclosingDefinition returns the ID of the innermost definition whose
// byte range contains the call, or "" for top-level call sites.
func enclosingDefinition(defs []definition, call *sitter.Node) string {
	var best string
	bestSpan := ^uint32(0)
	for _, d := range defs {
		if d.syn.StartByte() <= call.StartByte() && call.EndByte() <= d.syn.EndByte() {
			span := d.syn.EndByte() - d.syn.StartByte()
			if span < bestSpan {
				best, bestSpan = d.node.ID, span
			}
		}
	}
	return best
}

// signatureOf returns the definition's header: everything before its
// body, or the first line when the grammar exposes no body field.
func signatureOf(def *sitter.Node, src []byte) string {
	if body := def.ChildByFieldName("body"); body != nil && body.StartByte() > def.StartByte() {
		sig := string(src[def.StartByte():body.StartByte()])
		return strings.TrimRight(strings.TrimSpace(sig), "{:")
	}
	content := def.Content(src)
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSpace(content)
}

// docFor extracts the documentation attached to a definition: the
// contiguous comment block right above it, or for Python the docstring
// opening the body.
func docFor(spec *langSpec, def *sitter.Node, src []byte) string {
	if spec.name == "python" {
		return pythonDocstring(def, src)
	}
	var lines []string
	prevLine := def.StartPoint().Row
	for sib := def.PrevNamedSibling(); sib != nil && sib.Type() == "comment"; sib = sib.PrevNamedSibling() {
		if sib.EndPoint().Row+1 != prevLine {
			break
		}
		prevLine = sib.StartPoint().Row
		lines = append([]string{cleanComment(sib.Content(src))}, lines...)
	}
	return strings.Join(lines, "\n")
}

func pythonDocstring(def *sitter.Node, src []byte) string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return strings.Trim(str.Content(src), "\"' \n")
}

func cleanComment(c string) string {
	c = strings.TrimPrefix(c, "//")
	c = strings.TrimPrefix(c, "/*")
	c = strings.TrimSuffix(c, "*/")
	c = strings.TrimPrefix(c, "#")
	return strings.TrimSpace(c)
}

func preview(content string) string {
	lines := strings.SplitN(content, "\n", previewLines+1)
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	return strings.Join(lines, "\n")
}

func contentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16])
}
