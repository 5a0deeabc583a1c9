package preview

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const code = "int main(void) {\n    return 0;\n}\n"

func TestHighlight_AddsColor(t *testing.T) {
	out := Highlighter{}.Highlight(code, "main.c")

	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "return")
}

func TestHighlight_UnknownExtension(t *testing.T) {
	out := Highlighter{Style: "no-such-style"}.Highlight(code, "solution.unknown")

	assert.Contains(t, out, "return")
}

func TestWrite_PlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Highlighter{}.Write(&buf, code, "main.c"))

	assert.Equal(t, code, buf.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}

func TestHighlight_PreservesText(t *testing.T) {
	out := Highlighter{}.Highlight(code, "main.cpp")

	plain := stripANSI(out)
	assert.Equal(t, code, plain)
}

// stripANSI removes CSI color sequences.
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
