// Package detector identifies what kind of telemetry file it is given:
// a recorded serial log, the fixed SD-card CSV or a generic CSV.
package detector

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/parser"
)

// DetectionResult holds the result of analyzing a file.
type DetectionResult struct {
	Kind         Kind    `json:"kind"`
	Confidence   float64 `json:"confidence"` // 0.0 to 1.0 (share of lines that fit Kind)
	SampledLines int     `json:"sampled_lines"`
	SampleLine   string  `json:"sample_line,omitempty"`

	// Serial log classification.
	Categories   map[parser.Category]int `json:"categories,omitempty"`
	Unrecognized int                     `json:"unrecognized"`
	Commits      int                     `json:"commits"`
	LastLabel    string                  `json:"last_label,omitempty"`

	// CSV dialect.
	Delimiter    string   `json:"delimiter,omitempty"`
	DecimalComma bool     `json:"decimal_comma,omitempty"`
	Header       []string `json:"header,omitempty"`
	ValidRows    int      `json:"valid_rows"`
	SuggestedX   string   `json:"suggested_x,omitempty"`
	SuggestedY   string   `json:"suggested_y,omitempty"`
}

// Detector classifies telemetry files.
type Detector struct {
	parser     *parser.Parser
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithGrammar sets the serial protocol keywords.
func WithGrammar(g parser.Grammar) Option {
	return func(d *Detector) {
		d.parser = parser.New(g)
	}
}

// New creates a new Detector using the firmware grammar.
func New(opts ...Option) *Detector {
	d := &Detector{
		parser:     parser.New(parser.DefaultGrammar()),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile analyzes the head of a file.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines classifies a slice of lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	var cleaned []string
	for _, l := range lines {
		if c := parser.CleanLine([]byte(l)); c != "" {
			cleaned = append(cleaned, c)
		}
	}

	result := &DetectionResult{
		Kind:         KindUnknown,
		SampledLines: len(cleaned),
		Categories:   make(map[parser.Category]int),
	}
	if len(cleaned) == 0 {
		return result
	}

	serialScore, serialSample := d.classifySerial(cleaned, result)
	csvScore := d.classifyCSV(cleaned, result)

	switch {
	case serialScore > 0 && serialScore >= csvScore:
		result.Kind = KindSerialLog
		result.Confidence = serialScore
		result.SampleLine = serialSample
	case csvScore > 0:
		result.Kind = KindGenericCSV
		if ingest.IsFixedHeader(result.Header) {
			result.Kind = KindFixedCSV
		}
		result.Confidence = csvScore
		result.SampleLine = cleaned[1]
	}
	return result
}

// classifySerial replays the sample through the line parser and returns
// the share of lines that were recognised plus the first such line.
func (d *Detector) classifySerial(lines []string, result *DetectionResult) (float64, string) {
	state := parser.NewFieldState()
	recognised := 0
	first := ""
	for _, l := range lines {
		res := d.parser.Parse(l, state)
		if res.Outcome == parser.OutcomeNoop {
			result.Unrecognized++
			continue
		}
		result.Categories[res.Category]++
		recognised++
		if first == "" {
			first = l
		}
		if res.Outcome == parser.OutcomeSampleCommitted {
			result.Commits++
		}
	}
	if state.Label != parser.DefaultLabel {
		result.LastLabel = state.Label
	}
	return float64(recognised) / float64(len(lines)), first
}

// classifyCSV reads the sample as a delimited file and returns the share
// of data lines that form valid rows.
func (d *Detector) classifyCSV(lines []string, result *DetectionResult) float64 {
	sep := ingest.DetectDelimiter(lines[0])
	header := ingest.UniqueNames(ingest.SplitHeader(lines[0], sep))
	if len(header) < 2 || len(lines) < 2 {
		return 0
	}

	tbl, err := ingest.IngestBytes([]byte(strings.Join(lines, "\n")))
	if err != nil {
		return 0
	}

	result.Delimiter = string(sep)
	result.DecimalComma = tbl.DecimalComma
	result.Header = tbl.Columns
	result.ValidRows = tbl.Rows
	x, y := ingest.DefaultAxes(tbl.Columns)
	result.SuggestedX = tbl.Columns[x]
	result.SuggestedY = tbl.Columns[y]
	return float64(tbl.Rows) / float64(len(lines)-1)
}

// sampleFile reads up to sampleSize non-empty lines from a file.
func (d *Detector) sampleFile(_ context.Context, path string) ([]string, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() && len(lines) < d.sampleSize {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// IsCSV reports whether the file was recognised as a CSV of either kind.
func (r *DetectionResult) IsCSV() bool {
	return r.Kind == KindFixedCSV || r.Kind == KindGenericCSV
}
