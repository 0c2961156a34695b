package output

import (
	"context"
	"io"

	"github.com/vignelab/vignelab/pkg/chart"
)

// Formatter renders a report in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json).
	Name() string
}

// Renderer draws a chart description. It is the only place where a
// RenderSpec turns into pixels or pages.
type Renderer interface {
	// Render draws spec to the given writer.
	Render(ctx context.Context, spec *chart.RenderSpec, w io.Writer) error

	// Name returns the renderer name (png, pdf).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds per-column statistics and run metadata.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool
}

// NewFormatter returns the formatter for a format name.
func NewFormatter(name string, opts FormatOptions) (Formatter, bool) {
	switch name {
	case "text":
		return NewTextFormatter(opts), true
	case "json":
		return NewJSONFormatter(opts), true
	default:
		return nil, false
	}
}
