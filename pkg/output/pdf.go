package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/parser"
)

// PDFRenderer writes a one-page A4 report: title, the report summary when
// one is attached, and the chart drawn by the PNG renderer.
type PDFRenderer struct {
	Chart  *PNGRenderer
	Report *Report
}

// NewPDFRenderer creates a PDF renderer embedding charts drawn by png.
func NewPDFRenderer(png *PNGRenderer, report *Report) *PDFRenderer {
	if png == nil {
		png = NewPNGRenderer(0, 0)
	}
	return &PDFRenderer{Chart: png, Report: report}
}

// Name returns the renderer name.
func (r *PDFRenderer) Name() string {
	return "pdf"
}

// Render writes the PDF report to w. A spec without data still produces
// a page, without the chart.
func (r *PDFRenderer) Render(ctx context.Context, spec *chart.RenderSpec, w io.Writer) error {
	var img bytes.Buffer
	err := r.Chart.Render(ctx, spec, &img)
	switch {
	case errors.Is(err, ErrNothingToRender):
		img.Reset()
	case err != nil:
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(spec.Title), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(spec.Title))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	generated := time.Now()
	if r.Report != nil && !r.Report.Metadata.GeneratedAt.IsZero() {
		generated = r.Report.Metadata.GeneratedAt
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	pdf.Ln(6)

	if r.Report != nil {
		r.writeSummary(pdf, tr)
	}

	if img.Len() > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("chart", opts, &img)
		pdf.Ln(4)
		pdf.ImageOptions("chart", 10, pdf.GetY(), 190, 0, false, opts, 0, "")
	} else {
		pdf.Ln(4)
		pdf.Cell(0, 6, "No data to chart.")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("building pdf: %w", err)
	}
	return pdf.Output(w)
}

func (r *PDFRenderer) writeSummary(pdf *gofpdf.Fpdf, tr func(string) string) {
	rep := r.Report
	pdf.Cell(0, 6, fmt.Sprintf("Mode: %s", rep.Summary.Mode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d  Skipped: %d  Evicted: %d",
		rep.Summary.Samples, rep.Summary.Skipped, rep.Summary.Evicted))
	pdf.Ln(5)
	health := healthText(rep)
	if rep.Label != "" {
		health += "  (device: " + rep.Label + ")"
	}
	pdf.Cell(0, 6, tr("Health: "+health))
	pdf.Ln(8)

	snap := rep.Snapshot
	if snap == nil || snap.Empty {
		return
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Field", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Latest value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, field := range parser.Fields {
		v, ok := snap.Values[field]
		if !ok {
			continue
		}
		pdf.CellFormat(40, 6, field, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.3f", v), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}
