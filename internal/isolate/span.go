package isolate

import (
	"bytes"

	"github.com/hargabyte/carve/internal/syntax"
)

// MaxDrift is the default number of bytes a reported start offset may sit
// past the true start of a node.
const MaxDrift = 10

// Range is a byte span in the original source.
type Range struct {
	Start  int `yaml:"start" json:"start"`
	Length int `yaml:"length" json:"length"`
}

// End returns the offset one past the last byte of the range.
func (r Range) End() int {
	return r.Start + r.Length
}

// ResolveRange returns the exact span of node in source.
//
// The reported start is checked against the node's first token. When the
// token is not found there, up to maxDrift earlier offsets are tried. The
// range ends where the last token ends. Nodes without tokens use their
// reported extent unchanged.
func ResolveRange(node syntax.Node, source []byte, maxDrift int) (Range, error) {
	ext := node.Extent()
	tokens := node.Tokens()

	if len(tokens) == 0 {
		if ext.Start < 0 || ext.End < ext.Start || ext.End > len(source) {
			return Range{}, boundaryErr(node, ext.Start, "", maxDrift)
		}
		return Range{Start: ext.Start, Length: ext.Len()}, nil
	}

	first := []byte(tokens[0].Text)
	start, ok := alignStart(source, first, ext.Start, maxDrift)
	if !ok {
		return Range{}, boundaryErr(node, ext.Start, tokens[0].Text, maxDrift)
	}

	end := tokens[len(tokens)-1].Extent.End
	if end < start || end > len(source) {
		return Range{}, boundaryErr(node, end, "", maxDrift)
	}
	return Range{Start: start, Length: end - start}, nil
}

// alignStart finds the offset at or before reported where tok begins.
func alignStart(source, tok []byte, reported, maxDrift int) (int, bool) {
	for off := reported; off >= 0 && off >= reported-maxDrift; off-- {
		if off+len(tok) <= len(source) && bytes.Equal(source[off:off+len(tok)], tok) {
			return off, true
		}
	}
	return 0, false
}

func boundaryErr(node syntax.Node, reported int, token string, window int) error {
	return &BoundaryError{
		Kind:     node.Kind().String(),
		Name:     node.Name(),
		Reported: reported,
		Token:    token,
		Window:   window,
	}
}
