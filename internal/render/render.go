// Package render writes the runtime event trace. In pretty mode assistant
// markdown is rendered to ANSI with glamour and event labels are styled with
// lipgloss; otherwise everything is plain text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var labelStyles = map[string]lipgloss.Style{
	"tool_output": lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	"error":       lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	"warning":     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	"assistant":   lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
}

// Renderer traces bridge events to a writer. A nil Renderer discards
// everything, so call sites never need a guard.
type Renderer struct {
	out      io.Writer
	pretty   bool
	markdown *glamour.TermRenderer
}

// New builds a renderer. With pretty set, markdown rendering is attempted;
// if glamour fails to initialize the renderer degrades to plain output.
func New(out io.Writer, pretty bool) *Renderer {
	r := &Renderer{out: out, pretty: pretty}
	if pretty {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			r.markdown = tr
		}
	}
	return r
}

// Line traces one labeled event line.
func (r *Renderer) Line(kind, message string) {
	if r == nil || r.out == nil {
		return
	}
	label := kind
	if r.pretty {
		if style, ok := labelStyles[kind]; ok {
			label = style.Render(kind)
		}
	}
	fmt.Fprintf(r.out, "[%s] %s\n", label, message)
}

// Assistant traces a model-authored message, rendered as markdown in pretty
// mode.
func (r *Renderer) Assistant(message string) {
	if r == nil || r.out == nil {
		return
	}
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(message); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	r.Line("assistant", strings.TrimRight(message, "\n"))
}
