// Package parser turns raw sensor-rig telemetry lines into field updates
// and committed samples, and provides sources that yield those lines.
package parser

import "maps"

// Field names of the sensor schema.
const (
	FieldTemperature = "T"
	FieldHumidity    = "H"
	FieldNDVI        = "NDVI"
	FieldAccelX      = "ax"
	FieldAccelY      = "ay"
	FieldAccelZ      = "az"
)

// Fields lists the sensor schema in display order.
var Fields = []string{
	FieldTemperature,
	FieldHumidity,
	FieldNDVI,
	FieldAccelX,
	FieldAccelY,
	FieldAccelZ,
}

// DefaultLabel is the device label before any health-index line arrived.
const DefaultLabel = "waiting"

// FieldState accumulates the most recent value of every field between
// two commits.
type FieldState struct {
	// Values maps field name to its last parsed value.
	Values map[string]float64

	// Label is the state label reported by the device after the arrow
	// on a health-index line.
	Label string
}

// NewFieldState returns a state with every schema field set to zero.
func NewFieldState() *FieldState {
	s := &FieldState{
		Values: make(map[string]float64, len(Fields)),
		Label:  DefaultLabel,
	}
	for _, f := range Fields {
		s.Values[f] = 0
	}
	return s
}

// Clone returns a deep copy of the state.
func (s *FieldState) Clone() *FieldState {
	return &FieldState{Values: maps.Clone(s.Values), Label: s.Label}
}

// Sample is one finalized set of field values. Time is assigned by the
// store for live data, or taken from a source column for file data.
type Sample struct {
	Time   float64
	Values map[string]float64
}

// Line is a raw telemetry line before parsing.
type Line struct {
	// Text is the trimmed line content.
	Text string

	// Source names where the line came from (file path or port name).
	Source string

	// LineNum is the 1-based line number within the source.
	LineNum int
}

// Category identifies which line shape matched.
type Category string

const (
	CategoryNone    Category = ""
	CategoryHealth  Category = "health"
	CategoryAccel   Category = "accel"
	CategoryWeather Category = "weather"
)

// Outcome is the effect a parsed line had on the field state.
type Outcome int

const (
	// OutcomeNoop means the line was ignored.
	OutcomeNoop Outcome = iota
	// OutcomeFieldsUpdated means one or more fields changed.
	OutcomeFieldsUpdated
	// OutcomeSampleCommitted means the accumulated state was finalized.
	OutcomeSampleCommitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFieldsUpdated:
		return "fields-updated"
	case OutcomeSampleCommitted:
		return "sample-committed"
	default:
		return "no-op"
	}
}

// Result describes what Parse did with one line.
type Result struct {
	Outcome  Outcome
	Category Category

	// Sample is set only when Outcome is OutcomeSampleCommitted.
	Sample *Sample

	// Reason explains a no-op on a recognized category.
	Reason string
}
