package isolate

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Assembly is the input to Extract. All offsets refer to the same source.
type Assembly struct {
	// Includes are offsets of include operands, in file order.
	Includes []int
	// Globals are top-level declaration ranges, ascending.
	Globals []Range
	// Functions are entity ranges, ascending and non-overlapping.
	Functions []Range
}

// Extract builds the text of an extraction from r, which holds size bytes.
//
// The output is the include block, then the globals block, then one block
// per function. Blocks are separated by a blank line and the text ends with
// a newline. Empty blocks are skipped.
func Extract(r io.ReaderAt, size int64, a Assembly) (string, error) {
	var blocks []string

	if len(a.Includes) > 0 {
		lines := make([]string, 0, len(a.Includes))
		for _, off := range a.Includes {
			line, err := readLine(r, size, int64(off))
			if err != nil {
				return "", err
			}
			lines = append(lines, includeKeyword+strings.TrimSpace(line))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if len(a.Globals) > 0 {
		lines := make([]string, 0, len(a.Globals))
		for _, g := range a.Globals {
			text, err := readRange(r, size, g)
			if err != nil {
				return "", err
			}
			lines = append(lines, terminate(text))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	for _, f := range a.Functions {
		text, err := readRange(r, size, f)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, text)
	}

	if len(blocks) == 0 {
		return "", nil
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

// Redact returns source with every range removed. Ranges are deleted from
// the highest start to the lowest so earlier offsets stay valid.
func Redact(source []byte, ranges []Range) ([]byte, error) {
	ordered := slices.Clone(ranges)
	slices.SortFunc(ordered, func(a, b Range) int {
		return b.Start - a.Start
	})

	out := slices.Clone(source)
	for _, r := range ordered {
		if r.Start < 0 || r.Length < 0 || r.End() > len(out) {
			return nil, fmt.Errorf("range [%d, %d) outside source of %d bytes", r.Start, r.End(), len(source))
		}
		out = slices.Delete(out, r.Start, r.End())
	}
	return out, nil
}

func readRange(r io.ReaderAt, size int64, rg Range) (string, error) {
	if rg.Start < 0 || rg.Length < 0 || int64(rg.End()) > size {
		return "", fmt.Errorf("range [%d, %d) outside source of %d bytes", rg.Start, rg.End(), size)
	}
	buf := make([]byte, rg.Length)
	if _, err := r.ReadAt(buf, int64(rg.Start)); err != nil && err != io.EOF {
		return "", fmt.Errorf("read range at %d: %w", rg.Start, err)
	}
	return string(buf), nil
}

// readLine returns the text from off up to the end of its line.
func readLine(r io.ReaderAt, size, off int64) (string, error) {
	if off < 0 || off > size {
		return "", fmt.Errorf("offset %d outside source of %d bytes", off, size)
	}
	line, err := bufio.NewReader(io.NewSectionReader(r, off, size-off)).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read line at %d: %w", off, err)
	}
	return line, nil
}

// terminate appends a semicolon unless text already ends with one.
func terminate(text string) string {
	if strings.HasSuffix(strings.TrimSpace(text), ";") {
		return text
	}
	return text + ";"
}
