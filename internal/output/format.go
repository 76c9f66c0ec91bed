// Package output renders command results as tables, JSON, or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format names a rendering mode.
type Format string

const (
	FormatTable Format = "table"
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// IsTerminal reports whether w is an interactive terminal. Piped output
// falls back to plain rendering.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Renderer writes structured results in the selected format.
type Renderer struct {
	w      io.Writer
	format Format
}

// NewRenderer creates a renderer for the writer. An empty format means
// table.
func NewRenderer(w io.Writer, format Format) *Renderer {
	if format == "" {
		format = FormatTable
	}
	return &Renderer{w: w, format: format}
}

// Format returns the renderer's active format.
func (r *Renderer) Format() Format { return r.format }

// Render writes v in the selected format. Table and text rendering use
// the provided fallback, which receives a tab-aligned writer.
func (r *Renderer) Render(v any, table func(w io.Writer) error) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		if table == nil {
			return fmt.Errorf("no table renderer for %T", v)
		}
		tw := tabwriter.NewWriter(r.w, 0, 4, 2, ' ', 0)
		if err := table(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}
