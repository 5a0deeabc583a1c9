package parser

import (
	"strings"

	"github.com/hargabyte/carve/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// declaratorWrappers are declarator node types that wrap another declarator.
var declaratorWrappers = map[string]bool{
	"init_declarator":          true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"parenthesized_declarator": true,
}

// classify maps a tree-sitter node to the engine's node kinds.
func classify(node *sitter.Node) syntax.Kind {
	switch node.Type() {
	case "translation_unit":
		return syntax.KindTranslationUnit
	case "template_declaration":
		inner := templatedFunction(node)
		if inner == nil {
			return syntax.KindOther
		}
		if kind := classifyFunction(inner); kind == syntax.KindFunction {
			return kind
		}
		return syntax.KindOther
	case "function_definition":
		if isTemplated(node) {
			return syntax.KindOther
		}
		return classifyFunction(node)
	case "declaration":
		if isTemplated(node) {
			return syntax.KindOther
		}
		if findFunctionDeclarator(node) != nil {
			return classifyFunction(node)
		}
		if !declaresName(node) {
			return syntax.KindOther
		}
		return syntax.KindVariable
	case "using_declaration":
		if findChildByType(node, "namespace") != nil {
			return syntax.KindUsingDirective
		}
		return syntax.KindUsingDeclaration
	case "call_expression":
		return syntax.KindCall
	case "preproc_include":
		return syntax.KindInclusion
	}
	return syntax.KindOther
}

// classifyFunction separates free functions from members and qualified
// out-of-class definitions.
func classifyFunction(node *sitter.Node) syntax.Kind {
	fd := findFunctionDeclarator(node)
	if fd == nil {
		return syntax.KindOther
	}
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return syntax.KindOther
	}
	if parent := node.Parent(); parent != nil && parent.Type() == "field_declaration_list" {
		return syntax.KindMethod
	}
	switch nameNode.Type() {
	case "identifier":
		return syntax.KindFunction
	case "parenthesized_declarator":
		// function pointer variable: int (*fp)(int)
		return syntax.KindVariable
	default:
		return syntax.KindMethod
	}
}

// nodeName returns the declared name for the node kinds that have one.
func nodeName(node *sitter.Node, kind syntax.Kind, source []byte) string {
	switch kind {
	case syntax.KindFunction, syntax.KindMethod:
		target := node
		if node.Type() == "template_declaration" {
			target = templatedFunction(node)
		}
		fd := findFunctionDeclarator(target)
		if fd == nil {
			return ""
		}
		return contentOf(fd.ChildByFieldName("declarator"), source)
	case syntax.KindVariable:
		if fd := findFunctionDeclarator(node); fd != nil {
			return identifierIn(fd.ChildByFieldName("declarator"), source)
		}
		return identifierIn(node.ChildByFieldName("declarator"), source)
	case syntax.KindUsingDirective, syntax.KindUsingDeclaration:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "identifier" || child.Type() == "qualified_identifier" {
				return lastSegment(contentOf(child, source))
			}
		}
	case syntax.KindCall:
		return calleeName(node, source)
	case syntax.KindInclusion:
		path := node.ChildByFieldName("path")
		return strings.Trim(contentOf(path, source), `"<>`)
	}
	return ""
}

// calleeName returns the spelling of a call's callee when it names a free
// function directly (plain identifier or explicit template instantiation).
func calleeName(call *sitter.Node, source []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return contentOf(fn, source)
	case "template_function":
		if name := fn.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			return contentOf(name, source)
		}
	}
	return ""
}

// findFunctionDeclarator follows the declarator chain of a declaration or
// definition to its function_declarator, or returns nil.
func findFunctionDeclarator(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	d := node.ChildByFieldName("declarator")
	for d != nil {
		if d.Type() == "function_declarator" {
			return d
		}
		if !declaratorWrappers[d.Type()] {
			return nil
		}
		d = innerDeclarator(d)
	}
	return nil
}

// declaresName reports whether a declaration's first declarator ends in an
// identifier.
func declaresName(node *sitter.Node) bool {
	d := node.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier":
			return true
		}
		if !declaratorWrappers[d.Type()] && d.Type() != "function_declarator" {
			return false
		}
		d = innerDeclarator(d)
	}
	return false
}

// identifierIn returns the first identifier reached by following a
// declarator chain.
func identifierIn(d *sitter.Node, source []byte) string {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier":
			return contentOf(d, source)
		case "qualified_identifier":
			return lastSegment(contentOf(d, source))
		}
		d = innerDeclarator(d)
	}
	return ""
}

// innerDeclarator returns the declarator wrapped by d. Some wrappers expose
// it as a field, others only as their last named child.
func innerDeclarator(d *sitter.Node) *sitter.Node {
	if inner := d.ChildByFieldName("declarator"); inner != nil {
		return inner
	}
	if n := d.NamedChildCount(); n > 0 {
		last := d.NamedChild(int(n) - 1)
		if last.Type() == "initializer_list" || last.Type() == "argument_list" {
			return nil
		}
		return last
	}
	return nil
}

// templatedFunction returns the function a template_declaration wraps.
func templatedFunction(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			return child
		case "declaration":
			if findFunctionDeclarator(child) != nil {
				return child
			}
		}
	}
	return nil
}

// isTemplated reports whether node is the body of a template_declaration.
func isTemplated(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Type() == "template_declaration"
}

// findChildByType finds the first child node of the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := uint32(0); i < node.ChildCount(); i++ {
		child := node.Child(int(i))
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

func contentOf(node *sitter.Node, source []byte) string {
	if node == nil || node.EndByte() > uint32(len(source)) {
		return ""
	}
	return node.Content(source)
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
