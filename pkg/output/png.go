package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/vignelab/vignelab/pkg/chart"
)

// ErrNothingToRender is returned for a spec without any data point.
var ErrNothingToRender = errors.New("chart has no data points")

// Default image size in pixels.
const (
	DefaultWidth  = 900
	DefaultHeight = 500
)

// PNGRenderer draws a RenderSpec as a PNG image.
type PNGRenderer struct {
	Width  int
	Height int
}

// NewPNGRenderer creates a renderer of the given size. Non-positive
// dimensions fall back to the defaults.
func NewPNGRenderer(width, height int) *PNGRenderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &PNGRenderer{Width: width, Height: height}
}

// Name returns the renderer name.
func (r *PNGRenderer) Name() string {
	return "png"
}

// Render draws spec to w.
func (r *PNGRenderer) Render(ctx context.Context, spec *chart.RenderSpec, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if spec.Points() == 0 {
		return ErrNothingToRender
	}

	var series []gochart.Series
	for _, s := range spec.Series {
		if len(s.X) == 0 {
			continue
		}
		xs, ys := s.X, s.Y
		// go-chart needs two X values per series.
		if len(xs) == 1 {
			xs = []float64{xs[0], xs[0] + 1}
			ys = []float64{ys[0], ys[0]}
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   seriesStyle(s),
		})
	}

	xMin, xMax, yMin, yMax := bounds(spec)
	yRange := &gochart.ContinuousRange{Min: yMin, Max: yMax}
	if spec.YRange != nil {
		yRange = &gochart.ContinuousRange{Min: spec.YRange.Min, Max: spec.YRange.Max}
	}

	graph := gochart.Chart{
		Title:      spec.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:  spec.XLabel,
			Range: &gochart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: gochart.YAxis{
			Name:  spec.YLabel,
			Range: yRange,
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("rendering %q: %w", spec.Title, err)
	}
	return nil
}

func seriesStyle(s chart.Series) gochart.Style {
	col := parseColor(s.Color)
	switch s.Style {
	case chart.StyleScatter:
		return gochart.Style{
			StrokeWidth: gochart.Disabled,
			DotWidth:    4,
			DotColor:    col,
		}
	case chart.StyleLineMarkers:
		return gochart.Style{
			StrokeColor: col,
			StrokeWidth: 2,
			DotWidth:    3,
			DotColor:    col,
		}
	default:
		return gochart.Style{
			StrokeColor: col,
			StrokeWidth: 2,
		}
	}
}

func parseColor(hex string) drawing.Color {
	if hex == "" {
		return gochart.ColorBlue
	}
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

// bounds returns the data extent, widened when it collapses to a point.
func bounds(spec *chart.RenderSpec) (xMin, xMax, yMin, yMax float64) {
	xMin, yMin = math.Inf(1), math.Inf(1)
	xMax, yMax = math.Inf(-1), math.Inf(-1)
	for _, s := range spec.Series {
		for i := range s.X {
			xMin, xMax = math.Min(xMin, s.X[i]), math.Max(xMax, s.X[i])
			yMin, yMax = math.Min(yMin, s.Y[i]), math.Max(yMax, s.Y[i])
		}
	}
	if xMax <= xMin {
		xMax = xMin + 1
	}
	if yMax <= yMin {
		yMin, yMax = yMin-1, yMax+1
	}
	return xMin, xMax, yMin, yMax
}
