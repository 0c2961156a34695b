// Package chart turns a chart mode or a pair of table columns into a
// RenderSpec. Nothing here performs I/O or keeps state.
package chart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownMode is returned for a mode outside the fixed set.
	ErrUnknownMode = errors.New("unknown chart mode")

	// ErrUnknownColumn is returned when an axis names a missing column.
	ErrUnknownColumn = errors.New("unknown column")
)

// Mode selects one of the fixed sensor charts.
type Mode string

const (
	ModeNDVI  Mode = "NDVI"
	ModeTemp  Mode = "TEMP"
	ModeHum   Mode = "HUM"
	ModeAccel Mode = "ACCEL"
)

// Modes lists the fixed modes in menu order.
var Modes = []Mode{ModeNDVI, ModeTemp, ModeHum, ModeAccel}

// ParseMode parses a mode name, ignoring case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Variant picks the drawing style of the fixed modes.
type Variant int

const (
	// VariantLive draws lines with point markers (bounded live history).
	VariantLive Variant = iota
	// VariantHistory draws plain lines (full recorded history).
	VariantHistory
)

func (v Variant) String() string {
	if v == VariantHistory {
		return "history"
	}
	return "live"
}

// Style is how one series is drawn.
type Style int

const (
	StyleLine Style = iota
	StyleLineMarkers
	StyleScatter
)

func (s Style) String() string {
	switch s {
	case StyleLineMarkers:
		return "line+markers"
	case StyleScatter:
		return "scatter"
	default:
		return "line"
	}
}

// Range is a closed axis interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Series is one drawable data series. X and Y have the same length.
type Series struct {
	Name  string    `json:"name"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Color string    `json:"color"`
	Style Style     `json:"style"`
}

// RenderSpec fully describes a chart for a renderer.
type RenderSpec struct {
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	YRange *Range   `json:"y_range,omitempty"`
	Series []Series `json:"series"`
}

// Points returns the number of points across all series.
func (s *RenderSpec) Points() int {
	n := 0
	for _, ser := range s.Series {
		n += len(ser.X)
	}
	return n
}

// SeriesSource yields aligned time and value slices for a field.
// store.Store satisfies it.
type SeriesSource interface {
	SeriesFor(field string) (times, values []float64, ok bool)
}

// Columns yields table columns for free-axis charts. ingest.Table
// satisfies it.
type Columns interface {
	Column(name string) ([]float64, bool)
}
