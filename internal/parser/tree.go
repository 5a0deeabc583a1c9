package parser

import (
	"sync"

	"github.com/hargabyte/carve/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// Frontend parses C and C++ files into syntax trees.
// The grammar is chosen from the file extension unless Language is set.
type Frontend struct {
	Language Language
}

// Parse implements syntax.Frontend.
func (f Frontend) Parse(path string) (syntax.Tree, error) {
	lang := f.Language
	if lang == "" {
		lang = LanguageFromPath(path)
	}

	p, err := NewParser(lang)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	result, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewTree(result), nil
}

// Tree adapts a ParseResult to syntax.Tree.
type Tree struct {
	result *ParseResult

	indexOnce sync.Once
	defs      map[string]*sitter.Node
	protos    map[string]*sitter.Node
}

// NewTree wraps a parse result. The tree owns the result and releases it on
// Close.
func NewTree(result *ParseResult) *Tree {
	return &Tree{result: result}
}

// Root returns the translation unit.
func (t *Tree) Root() syntax.Node {
	if t.result.Root == nil {
		return nil
	}
	return t.wrap(t.result.Root)
}

// Path returns the parsed file path.
func (t *Tree) Path() string { return t.result.FilePath }

// Source returns the parsed bytes.
func (t *Tree) Source() []byte { return t.result.Source }

// Digest returns the xxhash64 of the parsed bytes.
func (t *Tree) Digest() uint64 { return t.result.Digest }

// HasErrors reports whether tree-sitter recovered from syntax errors while
// building the tree.
func (t *Tree) HasErrors() bool { return t.result.HasErrors() }

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() { t.result.Close() }

func (t *Tree) wrap(n *sitter.Node) *node {
	return &node{tree: t, n: n, kind: classify(n)}
}

// lookup returns the first definition of a free function named name, falling
// back to its first prototype.
func (t *Tree) lookup(name string) *sitter.Node {
	t.indexOnce.Do(t.buildIndex)
	if n, ok := t.defs[name]; ok {
		return n
	}
	return t.protos[name]
}

func (t *Tree) buildIndex() {
	t.defs = make(map[string]*sitter.Node)
	t.protos = make(map[string]*sitter.Node)

	t.result.WalkNodes(func(n *sitter.Node) bool {
		if classify(n) != syntax.KindFunction || !atFileScope(n) {
			return true
		}
		name := nodeName(n, syntax.KindFunction, t.result.Source)
		if name == "" {
			return true
		}
		index := t.protos
		if isDefinition(n) {
			index = t.defs
		}
		if _, seen := index[name]; !seen {
			index[name] = n
		}
		return true
	})
}

// fileScopes are the node types a file-scope declaration may be nested in.
var fileScopes = map[string]bool{
	"translation_unit":      true,
	"namespace_definition":  true,
	"declaration_list":      true,
	"linkage_specification": true,
	"template_declaration":  true,
	"preproc_if":            true,
	"preproc_ifdef":         true,
	"preproc_else":          true,
	"preproc_elif":          true,
}

// atFileScope reports whether n is declared outside any function body.
// Block-scope prototypes are visible only inside their block and are
// enclosed by another entity's range.
func atFileScope(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if !fileScopes[p.Type()] {
			return false
		}
	}
	return true
}

func isDefinition(n *sitter.Node) bool {
	if n.Type() == "template_declaration" {
		inner := templatedFunction(n)
		return inner != nil && inner.Type() == "function_definition"
	}
	return n.Type() == "function_definition"
}

// node is a syntax.Node backed by a tree-sitter node.
type node struct {
	tree *Tree
	n    *sitter.Node
	kind syntax.Kind
}

func (n *node) ID() syntax.NodeID {
	return syntax.NodeID{
		Start: int(n.n.StartByte()),
		End:   int(n.n.EndByte()),
		Type:  n.n.Type(),
	}
}

func (n *node) Kind() syntax.Kind { return n.kind }

func (n *node) Name() string {
	return nodeName(n.n, n.kind, n.tree.result.Source)
}

func (n *node) File() string { return n.tree.result.FilePath }

// Extent reports the node's byte span, including a declaration's
// terminating semicolon.
func (n *node) Extent() syntax.Extent {
	return syntax.Extent{Start: int(n.n.StartByte()), End: int(n.n.EndByte())}
}

// Children returns the named children in source order.
func (n *node) Children() []syntax.Node {
	count := int(n.n.NamedChildCount())
	children := make([]syntax.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.n.NamedChild(i); c != nil {
			children = append(children, n.tree.wrap(c))
		}
	}
	return children
}

// Tokens returns the non-empty leaves under the node.
func (n *node) Tokens() []syntax.Token {
	source := n.tree.result.Source
	var tokens []syntax.Token
	walkNode(n.n, func(c *sitter.Node) bool {
		if c.ChildCount() > 0 || c.EndByte() <= c.StartByte() {
			return true
		}
		tokens = append(tokens, syntax.Token{
			Text:   contentOf(c, source),
			Extent: syntax.Extent{Start: int(c.StartByte()), End: int(c.EndByte())},
		})
		return true
	})
	return tokens
}

// Referenced resolves a call to the same-file function it names.
func (n *node) Referenced() syntax.Node {
	if n.kind != syntax.KindCall {
		return nil
	}
	name := calleeName(n.n, n.tree.result.Source)
	if name == "" {
		return nil
	}
	target := n.tree.lookup(name)
	if target == nil {
		return nil
	}
	return n.tree.wrap(target)
}
