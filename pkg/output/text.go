package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vignelab/vignelab/pkg/parser"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "VigneLab: %s, %d samples, %d skipped, health %s\n",
		report.Summary.Mode,
		report.Summary.Samples,
		report.Summary.Skipped,
		healthText(report))
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "=== VigneLab Report (%s) ===\n", report.Summary.Mode)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Health: %s", healthText(report))
	if report.Label != "" {
		fmt.Fprintf(w, "  (device: %s)", report.Label)
	}
	fmt.Fprintln(w)

	if snap := report.Snapshot; snap != nil && !snap.Empty {
		fmt.Fprintf(w, "Latest sample at t=%gs\n", snap.Time)
		for _, field := range parser.Fields {
			if v, ok := snap.Values[field]; ok {
				fmt.Fprintf(w, "  %-5s %10.3f\n", field, v)
			}
		}
	}
	fmt.Fprintln(w)

	if len(report.Columns) > 0 && (f.opts.Verbose || report.Snapshot == nil) {
		width := 6
		for _, c := range report.Columns {
			width = max(width, len(c.Name))
		}
		fmt.Fprintf(w, "%-*s %8s %10s %10s %10s %10s\n", width, "Column", "Count", "Min", "Max", "Mean", "Last")
		for _, c := range report.Columns {
			fmt.Fprintf(w, "%-*s %8d %10.3f %10.3f %10.3f %10.3f\n",
				width, c.Name, c.Count, c.Min, c.Max, c.Mean, c.Last)
		}
		fmt.Fprintln(w)
	}

	if report.Chart != nil {
		fmt.Fprintf(w, "Chart: %s (%d series, %d points)\n",
			report.Chart.Title, report.Chart.Series, report.Chart.Points)
	}
	for _, out := range report.Outputs {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d samples, %d skipped, %d evicted\n",
		report.Summary.Samples,
		report.Summary.Skipped,
		report.Summary.Evicted)

	if report.Rows != nil && f.opts.Verbose {
		fmt.Fprintf(w, "Rows: %d accepted, %d short, %d invalid, %d blank\n",
			report.Rows.Accepted,
			report.Rows.ShortRows,
			report.Rows.InvalidRows,
			report.Rows.BlankLines)
	}

	if f.opts.Verbose {
		if len(report.Metadata.Sources) > 0 {
			fmt.Fprintf(w, "Sources: %s\n", strings.Join(report.Metadata.Sources, ", "))
		}
		_, err := fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		return err
	}

	return nil
}

func healthText(report *Report) string {
	if report.Summary.Health == "" {
		return "unknown"
	}
	return strings.ToUpper(string(report.Summary.Health))
}
