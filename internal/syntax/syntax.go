// Package syntax defines the minimal capability a C/C++ front end must expose
// for entity isolation.
//
// The isolation engine only ever talks to these interfaces, so any front end
// that can report node kinds, spellings, extents, children, tokens and call
// references can be substituted without touching the engine.
package syntax

import (
	"fmt"
	"strings"
)

// Kind classifies a node. Only the kinds the engine cares about are named;
// everything else is KindOther.
type Kind int

const (
	// KindOther is any node the engine does not distinguish.
	KindOther Kind = iota
	// KindTranslationUnit is the root of a parsed file.
	KindTranslationUnit
	// KindFunction is a free function definition or prototype.
	KindFunction
	// KindMethod is a member function or a qualified out-of-class definition.
	KindMethod
	// KindVariable is a variable declaration (global or local).
	KindVariable
	// KindUsingDirective is `using namespace X`.
	KindUsingDirective
	// KindUsingDeclaration is `using X::y`.
	KindUsingDeclaration
	// KindCall is a call expression.
	KindCall
	// KindInclusion is an #include directive.
	KindInclusion
)

var kindNames = map[Kind]string{
	KindOther:            "other",
	KindTranslationUnit:  "translation-unit",
	KindFunction:         "function",
	KindMethod:           "method",
	KindVariable:         "variable",
	KindUsingDirective:   "using-directive",
	KindUsingDeclaration: "using-declaration",
	KindCall:             "call",
	KindInclusion:        "inclusion",
}

// String returns the kind name used in reports and on the command line.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText lets kinds appear by name in yaml and json reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind parses an entity kind name. Only the kinds that can be requested
// as targets are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "function", "func", "fn", "":
		return KindFunction, nil
	case "variable", "var", "global":
		return KindVariable, nil
	case "using-directive", "using-namespace":
		return KindUsingDirective, nil
	case "using-declaration", "using":
		return KindUsingDeclaration, nil
	default:
		return KindOther, fmt.Errorf("invalid entity kind: %q (expected function, variable, using-directive, or using-declaration)", s)
	}
}

// IsTopLevelDeclaration reports whether a direct child of the translation unit
// with this kind belongs to the globals section of an extraction.
func (k Kind) IsTopLevelDeclaration() bool {
	return k == KindVariable || k == KindUsingDirective || k == KindUsingDeclaration
}

// Extent is the byte span a front end reports for a node. It may be
// imprecise; see the isolate package for how it is corrected.
type Extent struct {
	Start int
	End   int
}

// Len returns End - Start.
func (e Extent) Len() int {
	return e.End - e.Start
}

// Token is one lexical token of a node with its reported extent.
type Token struct {
	Text   string
	Extent Extent
}

// NodeID is a stable, comparable node identity. Two handles for the same
// syntactic node compare equal even if the front end allocated them twice.
type NodeID struct {
	Start int
	End   int
	Type  string
}

// Node is a handle on one syntax tree node.
type Node interface {
	// ID returns the stable identity of the node.
	ID() NodeID
	// Kind returns the classification of the node.
	Kind() Kind
	// Name returns the declared name (spelling), or "" for unnamed nodes.
	Name() string
	// File returns the path of the file the node was parsed from.
	File() string
	// Extent returns the reported byte span.
	Extent() Extent
	// Children returns the child nodes in source order.
	Children() []Node
	// Tokens returns the token stream covering the node.
	Tokens() []Token
	// Referenced returns the declaration a call expression refers to, or nil.
	Referenced() Node
}

// Tree is a parsed file.
type Tree interface {
	// Root returns the translation unit node.
	Root() Node
	// Path returns the file path that was parsed.
	Path() string
	// Source returns the exact bytes that were parsed.
	Source() []byte
	// Digest returns a content hash of Source.
	Digest() uint64
	// Close releases front-end resources held by the tree.
	Close()
}

// Frontend builds trees from file paths.
type Frontend interface {
	Parse(path string) (Tree, error)
}
