// Package preview prints produced C/C++ text with terminal syntax colors.
package preview

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/term"
)

// DefaultStyle is the chroma style used when none is given.
const DefaultStyle = "monokai"

// Highlighter colors source text for a 256-color terminal.
type Highlighter struct {
	Style string
}

// Highlight returns code with ANSI colors. filename selects the lexer; C++ is
// assumed when it is not recognized. On any lexer or formatter failure the
// code is returned unchanged.
func (h Highlighter) Highlight(code, filename string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer == nil {
		lexer = lexers.Get("cpp")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	name := h.Style
	if name == "" {
		name = DefaultStyle
	}
	style := styles.Get(name)
	if style == nil {
		style = styles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// Write prints code to w, colored only when w is a terminal.
func (h Highlighter) Write(w io.Writer, code, filename string) error {
	if IsTerminal(w) {
		code = h.Highlight(code, filename)
	}
	_, err := io.WriteString(w, code)
	return err
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
