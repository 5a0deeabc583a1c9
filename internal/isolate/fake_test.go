package isolate

import (
	"strings"

	"github.com/hargabyte/carve/internal/syntax"
)

// fakeNode is a hand-built syntax.Node for exercising the engine without a
// front end.
type fakeNode struct {
	kind     syntax.Kind
	name     string
	file     string
	ext      syntax.Extent
	tokens   []syntax.Token
	children []syntax.Node
	ref      syntax.Node
}

func (n *fakeNode) ID() syntax.NodeID {
	return syntax.NodeID{Start: n.ext.Start, End: n.ext.End, Type: n.kind.String() + ":" + n.name}
}
func (n *fakeNode) Kind() syntax.Kind { return n.kind }
func (n *fakeNode) Name() string { return n.name }
func (n *fakeNode) File() string { return n.file }
func (n *fakeNode) Extent() syntax.Extent { return n.ext }
func (n *fakeNode) Children() []syntax.Node { return n.children }
func (n *fakeNode) Tokens() []syntax.Token { return n.tokens }
func (n *fakeNode) Referenced() syntax.Node { return n.ref }

// fakeFile hands out distinct extents so every node has its own identity.
type fakeFile struct {
	path string
	next int
}

func (f *fakeFile) node(kind syntax.Kind, name string, children ...syntax.Node) *fakeNode {
	f.next += 10
	return &fakeNode{
		kind:     kind,
		name:     name,
		file:     f.path,
		ext:      syntax.Extent{Start: f.next, End: f.next + 5},
		children: children,
	}
}

func (f *fakeFile) fn(name string, body ...syntax.Node) *fakeNode {
	return f.node(syntax.KindFunction, name, f.node(syntax.KindOther, "body", body...))
}

func (f *fakeFile) call(target syntax.Node, args ...syntax.Node) *fakeNode {
	c := f.node(syntax.KindCall, "", args...)
	c.ref = target
	return c
}

func (f *fakeFile) unit(children ...syntax.Node) *fakeNode {
	return &fakeNode{kind: syntax.KindTranslationUnit, file: f.path, ext: syntax.Extent{End: 1 << 20}, children: children}
}

func names(nodes []syntax.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

// tokenize splits text on spaces into tokens placed at base.
func tokenize(text string, base int) []syntax.Token {
	var tokens []syntax.Token
	off := 0
	for _, field := range strings.Split(text, " ") {
		if field != "" {
			tokens = append(tokens, syntax.Token{
				Text:   field,
				Extent: syntax.Extent{Start: base + off, End: base + off + len(field)},
			})
		}
		off += len(field) + 1
	}
	return tokens
}
