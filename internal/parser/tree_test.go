package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hargabyte/carve/internal/syntax"
)

const testCppSource = `#include <string>

using namespace std;
using std::string;

int (*handler)(int);
static const int limit = 4;

template <typename T>
T identity(T v) { return v; }

struct Box {
    int get() { return 1; }
};

int Box_size();

int twice(int x) { return identity(x) * 2; }

int Box::size() { return 2; }

int main() {
    return twice(limit);
}
`

func parseTree(t *testing.T, name, source string) syntax.Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := Frontend{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", name, err)
	}
	t.Cleanup(tree.Close)
	return tree
}

// collect returns every node of kind under root in depth-first order.
func collect(root syntax.Node, kind syntax.Kind) []syntax.Node {
	var out []syntax.Node
	var walk func(syntax.Node)
	walk = func(n syntax.Node) {
		if n.Kind() == kind {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func childNamed(t *testing.T, root syntax.Node, kind syntax.Kind, name string) syntax.Node {
	t.Helper()
	for _, c := range root.Children() {
		if c.Kind() == kind && c.Name() == name {
			return c
		}
	}
	t.Fatalf("no top-level %s named %q", kind, name)
	return nil
}

func text(tree syntax.Tree, ext syntax.Extent) string {
	return string(tree.Source()[ext.Start:ext.End])
}

func TestFrontend_Classification(t *testing.T) {
	tree := parseTree(t, "prog.c", testCSource)
	root := tree.Root()

	if root.Kind() != syntax.KindTranslationUnit {
		t.Fatalf("expected translation unit, got %s", root.Kind())
	}

	tests := []struct {
		kind syntax.Kind
		name string
	}{
		{syntax.KindInclusion, "stdio.h"},
		{syntax.KindInclusion, "util.h"},
		{syntax.KindVariable, "counter"},
		{syntax.KindFunction, "helper"},
		{syntax.KindFunction, "main"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.name, func(t *testing.T) {
			n := childNamed(t, root, tt.kind, tt.name)
			if n.File() != tree.Path() {
				t.Errorf("expected file %q, got %q", tree.Path(), n.File())
			}
		})
	}
}

func TestFrontend_CppClassification(t *testing.T) {
	tree := parseTree(t, "prog.cpp", testCppSource)
	root := tree.Root()

	t.Run("using directive", func(t *testing.T) {
		n := childNamed(t, root, syntax.KindUsingDirective, "std")
		if got := text(tree, n.Extent()); got != "using namespace std;" {
			t.Errorf("unexpected extent text %q", got)
		}
	})

	t.Run("using declaration", func(t *testing.T) {
		n := childNamed(t, root, syntax.KindUsingDeclaration, "string")
		if got := text(tree, n.Extent()); got != "using std::string;" {
			t.Errorf("unexpected extent text %q", got)
		}
	})

	t.Run("function pointer is a variable", func(t *testing.T) {
		childNamed(t, root, syntax.KindVariable, "handler")
	})

	t.Run("template function", func(t *testing.T) {
		n := childNamed(t, root, syntax.KindFunction, "identity")
		if n.ID().Type != "template_declaration" {
			t.Errorf("expected template_declaration, got %s", n.ID().Type)
		}
	})

	t.Run("qualified definition is a method", func(t *testing.T) {
		childNamed(t, root, syntax.KindMethod, "Box::size")
	})

	t.Run("in-class definition is a method", func(t *testing.T) {
		methods := collect(root, syntax.KindMethod)
		found := false
		for _, m := range methods {
			if m.Name() == "get" {
				found = true
			}
		}
		if !found {
			t.Error("expected member function get to be a method")
		}
	})
}

func TestNode_VariableExtentIncludesSemicolon(t *testing.T) {
	tree := parseTree(t, "prog.c", testCSource)
	n := childNamed(t, tree.Root(), syntax.KindVariable, "counter")

	if got := text(tree, n.Extent()); got != "int counter = 0;" {
		t.Errorf("unexpected extent text %q", got)
	}

	tokens := n.Tokens()
	if len(tokens) == 0 {
		t.Fatal("expected tokens")
	}
	last := tokens[len(tokens)-1]
	if last.Text != ";" {
		t.Errorf("expected last token ';', got %q", last.Text)
	}
	if last.Extent.End != n.Extent().End {
		t.Errorf("last token ends at %d, node at %d", last.Extent.End, n.Extent().End)
	}
}

func TestNode_FunctionTokens(t *testing.T) {
	tree := parseTree(t, "prog.c", testCSource)
	n := childNamed(t, tree.Root(), syntax.KindFunction, "main")

	tokens := n.Tokens()
	if len(tokens) < 2 {
		t.Fatalf("expected tokens, got %d", len(tokens))
	}
	if tokens[0].Text != "int" {
		t.Errorf("expected first token 'int', got %q", tokens[0].Text)
	}
	last := tokens[len(tokens)-1]
	if last.Text != "}" {
		t.Errorf("expected last token '}', got %q", last.Text)
	}
	if last.Extent.End != n.Extent().End {
		t.Errorf("last token ends at %d, node at %d", last.Extent.End, n.Extent().End)
	}
	for _, tok := range tokens {
		if got := text(tree, tok.Extent); got != tok.Text {
			t.Errorf("token %q does not match source %q", tok.Text, got)
		}
	}
}

func TestNode_Referenced(t *testing.T) {
	tree := parseTree(t, "prog.c", testCSource)
	main := childNamed(t, tree.Root(), syntax.KindFunction, "main")

	calls := collect(main, syntax.KindCall)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls in main, got %d", len(calls))
	}

	byName := map[string]syntax.Node{}
	for _, c := range calls {
		byName[c.Name()] = c
	}

	t.Run("resolves to definition over prototype", func(t *testing.T) {
		ref := byName["helper"].Referenced()
		if ref == nil {
			t.Fatal("expected helper call to resolve")
		}
		if ref.Kind() != syntax.KindFunction || ref.Name() != "helper" {
			t.Errorf("unexpected referent %s %q", ref.Kind(), ref.Name())
		}
		if ref.ID().Type != "function_definition" {
			t.Errorf("expected definition, got %s", ref.ID().Type)
		}
	})

	t.Run("external callee is unresolved", func(t *testing.T) {
		if ref := byName["printf"].Referenced(); ref != nil {
			t.Errorf("expected printf to be unresolved, got %q", ref.Name())
		}
	})

	t.Run("non-call has no referent", func(t *testing.T) {
		if ref := main.Referenced(); ref != nil {
			t.Error("expected nil for function node")
		}
	})
}

func TestNode_ReferencedTemplate(t *testing.T) {
	tree := parseTree(t, "prog.cpp", testCppSource)
	twice := childNamed(t, tree.Root(), syntax.KindFunction, "twice")

	calls := collect(twice, syntax.KindCall)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	ref := calls[0].Referenced()
	if ref == nil || ref.Name() != "identity" {
		t.Fatalf("expected call to resolve to identity, got %v", ref)
	}
}

func TestNode_IDStable(t *testing.T) {
	tree := parseTree(t, "prog.c", testCSource)
	a := childNamed(t, tree.Root(), syntax.KindFunction, "helper")
	b := childNamed(t, tree.Root(), syntax.KindFunction, "helper")

	if a.ID() != b.ID() {
		t.Errorf("expected equal ids, got %v and %v", a.ID(), b.ID())
	}
}

func TestNode_ReferencedIgnoresBlockScopePrototype(t *testing.T) {
	source := "int main(void) { int helper(int); return helper(1); }\n\nint keep(void) { return 7; }\n"

	t.Run("unresolved without a file-scope declaration", func(t *testing.T) {
		tree := parseTree(t, "prog.c", source)
		main := childNamed(t, tree.Root(), syntax.KindFunction, "main")

		calls := collect(main, syntax.KindCall)
		if len(calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(calls))
		}
		if ref := calls[0].Referenced(); ref != nil {
			t.Errorf("expected block-scope prototype to be ignored, got %s at %v", ref.Name(), ref.Extent())
		}
	})

	t.Run("resolves to the file-scope definition", func(t *testing.T) {
		tree := parseTree(t, "prog.c", source+"\nint helper(int x) { return x; }\n")
		main := childNamed(t, tree.Root(), syntax.KindFunction, "main")

		ref := collect(main, syntax.KindCall)[0].Referenced()
		if ref == nil {
			t.Fatal("expected helper call to resolve")
		}
		if ref.ID().Type != "function_definition" {
			t.Errorf("expected definition, got %s", ref.ID().Type)
		}
		if ref.Extent().Start < main.Extent().End {
			t.Errorf("referent at %d lies inside main", ref.Extent().Start)
		}
	})
}

func TestFrontend_ForcedLanguage(t *testing.T) {
	// valid C++, but not C
	const source = "namespace util { int twice(int x) { return 2 * x; } }\n"
	path := filepath.Join(t.TempDir(), "solution.txt")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		lang      Language
		wantError bool
	}{
		{C, true},
		{Cpp, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			tree, err := Frontend{Language: tt.lang}.Parse(path)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			defer tree.Close()

			if got := tree.(*Tree).HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", got, tt.wantError)
			}
		})
	}
}
