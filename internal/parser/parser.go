// Package parser provides the tree-sitter based C/C++ front end.
//
// The parser package wraps the tree-sitter library and adapts its trees to
// the syntax package's capability interfaces so the isolation engine never
// depends on tree-sitter directly.
package parser

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Language represents a supported programming language.
type Language string

const (
	// C represents the C programming language.
	C Language = "c"
	// Cpp represents the C++ programming language.
	Cpp Language = "cpp"
)

// Parser wraps tree-sitter for code parsing.
type Parser struct {
	parser *sitter.Parser
	lang   Language
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	// Tree is the complete tree-sitter parse tree.
	Tree *sitter.Tree
	// Root is the root node of the AST.
	Root *sitter.Node
	// Source is the original source code that was parsed.
	Source []byte
	// FilePath is the path to the source file (empty for in-memory parsing).
	FilePath string
	// Language is the programming language of the source.
	Language Language
	// Digest is the xxhash64 of Source.
	Digest uint64
}

// grammars maps each supported language to its tree-sitter grammar.
var grammars = map[Language]func() *sitter.Language{
	C:   c.GetLanguage,
	Cpp: cpp.GetLanguage,
}

// NewParser creates a parser for the given language.
// Returns an UnsupportedLanguageError if the language is not supported.
func NewParser(lang Language) (*Parser, error) {
	grammar, ok := grammars[lang]
	if !ok {
		return nil, &UnsupportedLanguageError{Language: string(lang)}
	}

	p := sitter.NewParser()
	p.SetLanguage(grammar())

	return &Parser{
		parser: p,
		lang:   lang,
	}, nil
}

// Parse parses source code and returns the AST.
// Source that is not valid UTF-8 is rejected with a DecodeError.
func (p *Parser) Parse(source []byte) (*ParseResult, error) {
	if off, ok := firstInvalidUTF8(source); !ok {
		return nil, &DecodeError{Offset: off}
	}

	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &ParseError{
			Message: err.Error(),
		}
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, &ParseError{
			Message: "front end produced no tree",
		}
	}

	return &ParseResult{
		Tree:     tree,
		Root:     tree.RootNode(),
		Source:   source,
		Language: p.lang,
		Digest:   xxhash.Sum64(source),
	}, nil
}

// ParseFile parses a file from disk.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}

	result, err := p.Parse(source)
	if err != nil {
		switch e := err.(type) {
		case *ParseError:
			e.File = path
		case *DecodeError:
			e.File = path
		}
		return nil, err
	}

	result.FilePath = path
	return result, nil
}

// Close releases parser resources.
// After calling Close, the parser should not be used.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
		p.parser = nil
	}
}

// Close releases the parse tree resources.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
		r.Tree = nil
		r.Root = nil
	}
}

// HasErrors returns true if the parse tree contains syntax errors.
func (r *ParseResult) HasErrors() bool {
	if r.Root == nil {
		return false
	}
	return r.Root.HasError()
}

// WalkNodes traverses the AST depth-first, calling the visitor function
// for each node. If the visitor returns false, traversal stops.
func (r *ParseResult) WalkNodes(visitor func(*sitter.Node) bool) {
	if r.Root == nil {
		return
	}
	walkNode(r.Root, visitor)
}

// walkNode is a helper for depth-first AST traversal.
func walkNode(node *sitter.Node, visitor func(*sitter.Node) bool) bool {
	if !visitor(node) {
		return false
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if !walkNode(node.Child(int(i)), visitor) {
			return false
		}
	}
	return true
}

// LanguageFromExtension returns the language for a file extension.
// Returns empty string if the extension is not recognized.
// Headers are parsed as C++ because the C++ grammar accepts C declarations.
func LanguageFromExtension(ext string) Language {
	switch ext {
	case ".c":
		return C
	case ".h", ".cpp", ".cc", ".cxx", ".c++", ".C", ".hpp", ".hh", ".hxx", ".ino":
		return Cpp
	default:
		return ""
	}
}

// LanguageFromPath picks the grammar for a file, defaulting to C++.
func LanguageFromPath(path string) Language {
	if lang := LanguageFromExtension(filepath.Ext(path)); lang != "" {
		return lang
	}
	return Cpp
}

// SupportedExtensions returns the extensions of C/C++ translation units.
// Headers are recognized by LanguageFromExtension but not listed, since they
// are included by sources rather than compiled on their own.
func SupportedExtensions() []string {
	return []string{
		".c",
		".cpp", ".cc", ".cxx", ".c++", ".C",
		".ino",
	}
}

// firstInvalidUTF8 returns the offset of the first byte that does not start a
// valid UTF-8 sequence.
func firstInvalidUTF8(b []byte) (int, bool) {
	if utf8.Valid(b) {
		return 0, true
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i, false
		}
		i += size
	}
	return len(b), false
}
