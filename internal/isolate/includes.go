package isolate

import (
	"iter"

	"github.com/hargabyte/carve/internal/syntax"
)

// includeKeyword is the text the assembler puts back in front of an
// include operand.
const includeKeyword = "#include "

// DirectIncludes yields, in file order, the offset of the path operand of
// every #include directive written in the parsed file. Included files are
// never expanded by the front end, so every directive found is direct.
func DirectIncludes(root syntax.Node) iter.Seq[int] {
	return func(yield func(int) bool) {
		if root == nil {
			return
		}
		walkIncludes(root, yield)
	}
}

func walkIncludes(n syntax.Node, yield func(int) bool) bool {
	for _, child := range n.Children() {
		if child.Kind() == syntax.KindInclusion {
			if !yield(operandOffset(child)) {
				return false
			}
			continue
		}
		if !walkIncludes(child, yield) {
			return false
		}
	}
	return true
}

// operandOffset returns where the directive's operand starts: the second
// token, after "#include".
func operandOffset(n syntax.Node) int {
	if tokens := n.Tokens(); len(tokens) > 1 {
		return tokens[1].Extent.Start
	}
	return n.Extent().Start + len(includeKeyword)
}
