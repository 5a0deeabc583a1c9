package isolate

import (
	"slices"

	"github.com/hargabyte/carve/internal/syntax"
)

// GlobalRanges returns the ranges of the top-level variable declarations and
// using directives/declarations of the translation unit, sorted by start.
func GlobalRanges(root syntax.Node, source []byte, maxDrift int) ([]Range, error) {
	if root == nil {
		return nil, nil
	}

	var ranges []Range
	for _, child := range root.Children() {
		if !child.Kind().IsTopLevelDeclaration() {
			continue
		}
		r, err := ResolveRange(child, source, maxDrift)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	sortRanges(ranges)
	return ranges, nil
}

func sortRanges(ranges []Range) {
	slices.SortFunc(ranges, func(a, b Range) int {
		return a.Start - b.Start
	})
}
