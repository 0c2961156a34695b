package ingest

import (
	"io"
	"os"
	"strings"

	"github.com/vignelab/vignelab/pkg/parser"
)

// FixedHeader is the column layout written by the logger's SD card.
var FixedHeader = []string{"Time_ms", "Temp", "Hum", "Pressure", "NDVI", "ax", "ay", "az"}

// fixedColumns maps positional columns to sensor fields. Pressure (3) is
// not read.
var fixedColumns = []struct {
	index int
	field string
}{
	{1, parser.FieldTemperature},
	{2, parser.FieldHumidity},
	{4, parser.FieldNDVI},
	{5, parser.FieldAccelX},
	{6, parser.FieldAccelY},
	{7, parser.FieldAccelZ},
}

// ReadFixed reads a fixed-schema SD-card log. The header line is skipped,
// columns are taken by position, and Time_ms is converted to seconds.
// Rows with fewer than eight fields or a non-numeric used field are
// dropped.
func ReadFixed(r io.Reader) ([]parser.Sample, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, &Error{Kind: ErrIO, Err: err}
	}
	return readFixed(data)
}

// ReadFixedFile opens and reads a fixed-schema log.
func ReadFixedFile(path string) ([]parser.Sample, Stats, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-selected data file
	if err != nil {
		return nil, Stats{}, &Error{Kind: ErrIO, Path: path, Err: err}
	}
	samples, stats, err := readFixed(data)
	if e, ok := err.(*Error); ok {
		e.Path = path
	}
	return samples, stats, err
}

func readFixed(data []byte) ([]parser.Sample, Stats, error) {
	var stats Stats
	lines := SplitLines(strings.ToValidUTF8(string(data), ""))
	headerIdx := firstNonBlank(lines)
	if headerIdx < 0 {
		return nil, stats, &Error{Kind: ErrEmpty}
	}
	sep := DetectDelimiter(lines[headerIdx])

	var samples []parser.Sample
	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			stats.BlankLines++
			continue
		}
		if sep == ';' {
			line = strings.ReplaceAll(line, ",", ".")
		}
		parts := strings.Split(line, string(sep))
		if len(parts) < len(FixedHeader) {
			stats.ShortRows++
			continue
		}
		s, ok := fixedSample(parts)
		if !ok {
			stats.InvalidRows++
			continue
		}
		samples = append(samples, s)
	}
	stats.Accepted = len(samples)

	if len(samples) == 0 {
		return nil, stats, &Error{Kind: ErrEmpty}
	}
	return samples, stats, nil
}

func fixedSample(parts []string) (parser.Sample, bool) {
	ms, ok := ParseNumber(parts[0])
	if !ok {
		return parser.Sample{}, false
	}
	values := make(map[string]float64, len(fixedColumns))
	for _, c := range fixedColumns {
		v, ok := ParseNumber(parts[c.index])
		if !ok {
			return parser.Sample{}, false
		}
		values[c.field] = v
	}
	return parser.Sample{Time: ms / 1000.0, Values: values}, true
}

// IsFixedHeader reports whether the header names match the fixed schema.
func IsFixedHeader(names []string) bool {
	if len(names) < len(FixedHeader) {
		return false
	}
	for i, want := range FixedHeader {
		if !strings.EqualFold(names[i], want) {
			return false
		}
	}
	return true
}
