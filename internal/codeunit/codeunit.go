// Package codeunit extracts a language-aware structural outline (functions,
// methods, types) from a source file, capturing each unit's byte span and its
// nearest preceding doc/leading comment block. References that land inside a
// unit's span are attributed to it; the innermost (smallest enclosing) unit
// wins when units nest.
//
// Go, JavaScript/JSX, TypeScript/TSX, and Python are parsed with tree-sitter
// for precise ranges. Every other supported source extension falls back to a
// simplified brace-depth scanner that recognizes common function/type
// declaration keywords; it is deliberately conservative, only ever widening
// scope (emitting a unit) on patterns it is confident about.
package codeunit

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/tracey-dev/tracey/internal/position"
)

// Kind classifies an extracted structural unit.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindType     Kind = "type"
)

// Unit is one structural element of a file's outline.
type Unit struct {
	Kind       Kind
	Name       string
	Span       position.Span
	DocComment string
}

// Outline is the ordered set of units extracted from one file, ready for
// innermost-enclosing lookups.
type Outline struct {
	Units []Unit
}

// Enclosing returns the smallest unit whose span contains offset, or nil if
// offset falls outside every unit (e.g. package-level code, import blocks).
func (o Outline) Enclosing(offset position.Offset) *Unit {
	var best *Unit
	bestLen := -1
	for i := range o.Units {
		u := &o.Units[i]
		if offset >= u.Span.Start && offset < u.Span.End {
			if l := u.Span.Len(); bestLen == -1 || l < bestLen {
				best = u
				bestLen = l
			}
		}
	}
	return best
}

var (
	goParserPool sync.Pool
	jsParserPool sync.Pool
	tsParserPool sync.Pool
	pyParserPool sync.Pool
	poolInit     sync.Once
)

func initPools() {
	poolInit.Do(func() {
		goParserPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(golang.GetLanguage())
			return p
		}
		jsParserPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(javascript.GetLanguage())
			return p
		}
		tsParserPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(typescript.GetLanguage())
			return p
		}
		pyParserPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(python.GetLanguage())
			return p
		}
	})
}

// Extract builds the Outline for content given its file extension (including
// the leading dot, e.g. ".go"). Unknown extensions use the fallback scanner.
func Extract(ext string, content []byte) (Outline, error) {
	initPools()

	switch strings.ToLower(ext) {
	case ".go":
		return extractTreeSitter(&goParserPool, content, goUnitRules)
	case ".js", ".jsx", ".mjs":
		return extractTreeSitter(&jsParserPool, content, jsUnitRules)
	case ".ts", ".tsx":
		return extractTreeSitter(&tsParserPool, content, jsUnitRules)
	case ".py":
		return extractTreeSitter(&pyParserPool, content, pyUnitRules)
	default:
		return fallbackExtract(content), nil
	}
}

// unitRule maps a tree-sitter node type to the Kind it represents and the
// field holding its name. nameField "" means take the name from the "name"
// field of the node's first type_spec child instead (Go's type_declaration
// needs that; see firstTypeSpecName).
type unitRule struct {
	nodeType  string
	kind      Kind
	nameField string
}

var goUnitRules = []unitRule{
	{"function_declaration", KindFunction, "name"},
	{"method_declaration", KindMethod, "name"},
	{"type_declaration", KindType, ""},
}

var jsUnitRules = []unitRule{
	{"function_declaration", KindFunction, "name"},
	{"method_definition", KindMethod, "name"},
	{"class_declaration", KindType, "name"},
}

var pyUnitRules = []unitRule{
	{"function_definition", KindFunction, "name"},
	{"class_definition", KindType, "name"},
}

func extractTreeSitter(pool *sync.Pool, content []byte, rules []unitRule) (Outline, error) {
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Outline{}, err
	}
	defer tree.Close()

	var units []Unit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		for _, rule := range rules {
			if n.Type() == rule.nodeType {
				units = append(units, buildUnit(n, content, rule))
				break
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	return Outline{Units: units}, nil
}

func buildUnit(n *sitter.Node, content []byte, rule unitRule) Unit {
	name := rule.nameField
	var nameNode *sitter.Node
	if rule.nameField != "" {
		nameNode = n.ChildByFieldName(rule.nameField)
	}
	if nameNode != nil {
		name = string(content[nameNode.StartByte():nameNode.EndByte()])
	} else {
		name = firstTypeSpecName(n, content)
	}

	docComment, docStart, hasDoc := leadingComment(n, content)

	start := n.StartByte()
	if hasDoc {
		start = docStart
	}
	span := position.Span{
		Start: position.Offset(start),
		End:   position.Offset(n.EndByte()),
	}

	return Unit{
		Kind:       rule.kind,
		Name:       name,
		Span:       span,
		DocComment: docComment,
	}
}

// firstTypeSpecName pulls the declared name out of a Go type_declaration,
// whose name sits one level down inside a type_spec child.
func firstTypeSpecName(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "type_spec" {
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				return string(content[nameNode.StartByte():nameNode.EndByte()])
			}
		}
	}
	return ""
}

// leadingComment walks backward over a node's preceding siblings, collecting
// contiguous comment nodes with no intervening blank line, and joins them as
// the unit's doc comment. This is how rule references attached to a
// function's documentation (rather than its body) get picked up. docStart is
// the byte offset of the earliest attached comment line, which the caller
// extends the unit's span back to — a marker written in the doc comment
// must land inside the unit's span, same as one written in the body.
// ok is false when the node has no attached leading comment at all.
func leadingComment(n *sitter.Node, content []byte) (doc string, docStart uint32, ok bool) {
	parent := n.Parent()
	if parent == nil {
		return "", 0, false
	}

	var idx int = -1
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i) == n {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return "", 0, false
	}

	var lines []string
	lastStart := n.StartPoint().Row
	for i := idx - 1; i >= 0; i-- {
		sibling := parent.Child(i)
		if sibling.Type() != "comment" {
			break
		}
		if lastStart > 0 && sibling.EndPoint().Row+1 < lastStart {
			break // blank line between comment and the unit: not attached
		}
		lines = append([]string{string(content[sibling.StartByte():sibling.EndByte()])}, lines...)
		docStart = sibling.StartByte()
		lastStart = sibling.StartPoint().Row
		ok = true
	}

	return strings.Join(lines, "\n"), docStart, ok
}
