package parser

import (
	"maps"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Grammar holds the keywords and unit suffixes that identify each line
// shape sent by the sensor firmware.
type Grammar struct {
	HealthKeyword   string
	AccelKeyword    string
	WeatherKeyword  string
	TemperatureUnit string
	HumidityUnit    string
	StateArrow      string
}

// DefaultGrammar matches the firmware output, e.g.
//
//	SANTÉ FEUILLE (NDVI) : 0.55 -> [ SAINE ]
//	ACCÉLÉRATION X: 0.12 | Y: 0.20 | Z: 9.81
//	MÉTÉO | 24.0°C | 55.2% Hum
func DefaultGrammar() Grammar {
	return Grammar{
		HealthKeyword:   "NDVI",
		AccelKeyword:    "ACCÉLÉRATION",
		WeatherKeyword:  "MÉTÉO",
		TemperatureUnit: "°C",
		HumidityUnit:    "% Hum",
		StateArrow:      "->",
	}
}

// Parser applies a Grammar to telemetry lines.
type Parser struct {
	grammar Grammar
}

// New creates a parser for the given grammar.
func New(g Grammar) *Parser {
	return &Parser{grammar: g}
}

// Grammar returns the grammar in use.
func (p *Parser) Grammar() Grammar {
	return p.grammar
}

// Classify reports which category a line belongs to without parsing it.
// Categories are checked in priority order: health, acceleration, weather.
func (p *Parser) Classify(line string) Category {
	g := p.grammar
	switch {
	case strings.Contains(line, g.HealthKeyword) && strings.Contains(line, ":"):
		return CategoryHealth
	case strings.Contains(line, g.AccelKeyword) && strings.Contains(line, "X:"):
		return CategoryAccel
	case strings.Contains(line, g.WeatherKeyword):
		return CategoryWeather
	default:
		return CategoryNone
	}
}

// Parse applies one line to state.
//
// The wire protocol has no record delimiter. The firmware sends the weather
// line last in every cycle, so a successfully parsed weather line is the
// end-of-record marker: it commits the whole accumulated state as one
// Sample. Reordering the firmware output breaks this grouping.
//
// Malformed values never produce an error; the line is a no-op and
// Result.Reason says why.
func (p *Parser) Parse(line string, state *FieldState) Result {
	line = strings.TrimSpace(strings.ToValidUTF8(line, ""))
	cat := p.Classify(line)
	res := Result{Category: cat}

	switch cat {
	case CategoryHealth:
		p.parseHealth(line, state, &res)
	case CategoryAccel:
		p.parseAccel(line, state, &res)
	case CategoryWeather:
		p.parseWeather(line, state, &res)
	default:
		res.Reason = "unrecognized line"
	}
	return res
}

func (p *Parser) parseHealth(line string, state *FieldState, res *Result) {
	v, ok := numberAfter(line, ":", scanNumber)
	if !ok {
		res.Reason = "no number after colon"
		return
	}
	state.Values[FieldNDVI] = v
	if arrow := p.grammar.StateArrow; arrow != "" {
		if _, after, found := strings.Cut(line, arrow); found {
			state.Label = strings.TrimSpace(after)
		}
	}
	res.Outcome = OutcomeFieldsUpdated
}

func (p *Parser) parseAccel(line string, state *FieldState, res *Result) {
	x, okX := numberAfter(line, "X:", scanDecimal)
	y, okY := numberAfter(line, "Y:", scanDecimal)
	z, okZ := numberAfter(line, "Z:", scanDecimal)
	if !okX || !okY || !okZ {
		res.Reason = "incomplete acceleration axes"
		return
	}
	state.Values[FieldAccelX] = x
	state.Values[FieldAccelY] = y
	state.Values[FieldAccelZ] = z
	res.Outcome = OutcomeFieldsUpdated
}

func (p *Parser) parseWeather(line string, state *FieldState, res *Result) {
	parts := strings.Split(line, "|")
	if len(parts) < 3 {
		res.Reason = "weather line has fewer than 3 segments"
		return
	}
	t, err := parseMeasure(parts[1], p.grammar.TemperatureUnit)
	if err != nil {
		res.Reason = "bad temperature: " + err.Error()
		return
	}
	h, err := parseMeasure(parts[2], p.grammar.HumidityUnit)
	if err != nil {
		res.Reason = "bad humidity: " + err.Error()
		return
	}
	state.Values[FieldTemperature] = t
	state.Values[FieldHumidity] = h

	res.Outcome = OutcomeSampleCommitted
	res.Sample = &Sample{Values: maps.Clone(state.Values)}
}

// parseMeasure strips a unit suffix and parses the remaining number.
func parseMeasure(segment, unit string) (float64, error) {
	s := segment
	if unit != "" {
		s = strings.ReplaceAll(s, unit, "")
	}
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, strconv.ErrSyntax
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// CleanLine drops invalid UTF-8 and surrounding whitespace.
func CleanLine(b []byte) string {
	if !utf8.Valid(b) {
		return strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
	}
	return strings.TrimSpace(string(b))
}
