package chart

import (
	"fmt"

	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/parser"
)

// Series colours.
const (
	ColorNDVI        = "#008000"
	ColorTemperature = "#0000FF"
	ColorHumidity    = "#008080"
	ColorAccelX      = "#800080"
	ColorAccelY      = "#FFA500"
	ColorAccelZ      = "#A52A2A"
	ColorFreeLine    = "#2196F3"
	ColorFreeScatter = "#00FFFF"
)

type seriesDef struct {
	field string
	name  string
	color string
}

type modeDef struct {
	title   string
	history string
	yLabel  string
	yRange  *Range
	series  []seriesDef
}

var modeDefs = map[Mode]modeDef{
	ModeNDVI: {
		title:   "Vine Health (NDVI)",
		history: "Vine Health (full history)",
		yLabel:  "NDVI index",
		yRange:  &Range{Min: -0.1, Max: 1.0},
		series:  []seriesDef{{parser.FieldNDVI, "NDVI", ColorNDVI}},
	},
	ModeTemp: {
		title:   "Temperature (°C)",
		history: "Temperature history (°C)",
		yLabel:  "°C",
		series:  []seriesDef{{parser.FieldTemperature, "Temperature", ColorTemperature}},
	},
	ModeHum: {
		title:   "Relative Humidity (%)",
		history: "Relative Humidity history (%)",
		yLabel:  "%",
		yRange:  &Range{Min: 0, Max: 100},
		series:  []seriesDef{{parser.FieldHumidity, "Humidity", ColorHumidity}},
	},
	ModeAccel: {
		title:   "Movement (accelerometer)",
		history: "Movement history (accelerometer)",
		yLabel:  "m/s²",
		series: []seriesDef{
			{parser.FieldAccelX, "X", ColorAccelX},
			{parser.FieldAccelY, "Y", ColorAccelY},
			{parser.FieldAccelZ, "Z", ColorAccelZ},
		},
	},
}

// TimeLabel is the X label of every fixed-mode chart.
const TimeLabel = "Elapsed time (s)"

// SelectMode builds the chart of a fixed mode from src. A field missing
// from src yields an empty series.
func SelectMode(mode Mode, variant Variant, src SeriesSource) (*RenderSpec, error) {
	def, ok := modeDefs[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}

	spec := &RenderSpec{
		Title:  def.title,
		XLabel: TimeLabel,
		YLabel: def.yLabel,
	}
	if variant == VariantHistory {
		spec.Title = def.history
	}
	if def.yRange != nil {
		r := *def.yRange
		spec.YRange = &r
	}

	style := StyleLineMarkers
	if variant == VariantHistory || mode == ModeAccel {
		style = StyleLine
	}

	for _, sd := range def.series {
		times, values, _ := src.SeriesFor(sd.field)
		spec.Series = append(spec.Series, Series{
			Name:  sd.name,
			X:     times,
			Y:     values,
			Color: sd.color,
			Style: style,
		})
	}
	return spec, nil
}

// SelectAxes builds a free-axis chart of column y against column x. The
// points are connected when x is a time column and scattered otherwise.
func SelectAxes(cols Columns, x, y string) (*RenderSpec, error) {
	xs, ok := cols.Column(x)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, x)
	}
	ys, ok := cols.Column(y)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, y)
	}

	series := Series{
		Name:  y,
		X:     append([]float64(nil), xs...),
		Y:     append([]float64(nil), ys...),
		Color: ColorFreeLine,
		Style: StyleLine,
	}
	if !ingest.IsTimeColumn(x) {
		series.Name = "Measurements"
		series.Color = ColorFreeScatter
		series.Style = StyleScatter
	}

	return &RenderSpec{
		Title:  fmt.Sprintf("%s vs %s", y, x),
		XLabel: x,
		YLabel: y,
		Series: []Series{series},
	}, nil
}
