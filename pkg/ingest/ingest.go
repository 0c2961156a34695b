package ingest

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Ingest reads a whole delimited file and returns its numeric table.
//
// The delimiter is ';' when the header line contains one, ',' otherwise.
// With ';', commas in data lines are decimal separators. Rows with fewer
// fields than the header, or with any non-numeric field, are dropped whole.
func Ingest(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Err: err}
	}
	return IngestBytes(data)
}

// IngestFile opens and ingests the file at path.
func IngestFile(path string) (*Table, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-selected data file
	if err != nil {
		return nil, &Error{Kind: ErrIO, Path: path, Err: err}
	}
	t, err := IngestBytes(data)
	if e, ok := err.(*Error); ok {
		e.Path = path
	}
	return t, err
}

// IngestBytes ingests raw file content. Invalid UTF-8 is dropped.
func IngestBytes(data []byte) (*Table, error) {
	lines := SplitLines(strings.ToValidUTF8(string(data), ""))

	headerIdx := firstNonBlank(lines)
	if headerIdx < 0 {
		return nil, &Error{Kind: ErrEmpty, Err: fmt.Errorf("no header line")}
	}

	sep := DetectDelimiter(lines[headerIdx])
	columns := UniqueNames(SplitHeader(lines[headerIdx], sep))
	if len(columns) == 0 {
		return nil, &Error{Kind: ErrEmpty, Err: fmt.Errorf("header has no column names")}
	}

	t := &Table{
		Columns:      columns,
		Data:         make(map[string][]float64, len(columns)),
		Delimiter:    sep,
		DecimalComma: sep == ';',
	}

	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			t.Stats.BlankLines++
			continue
		}
		values, reason := parseRow(line, sep, len(columns))
		switch reason {
		case rowShort:
			t.Stats.ShortRows++
			continue
		case rowInvalid:
			t.Stats.InvalidRows++
			continue
		}
		for i, c := range columns {
			t.Data[c] = append(t.Data[c], values[i])
		}
		t.Rows++
	}
	t.Stats.Accepted = t.Rows

	if t.Rows == 0 {
		return nil, &Error{Kind: ErrEmpty}
	}
	return t, nil
}

type rowResult int

const (
	rowOK rowResult = iota
	rowShort
	rowInvalid
)

// parseRow splits a data line and converts its first n fields.
func parseRow(line string, sep rune, n int) ([]float64, rowResult) {
	if sep == ';' {
		line = strings.ReplaceAll(line, ",", ".")
	}
	parts := strings.Split(line, string(sep))
	if len(parts) < n {
		return nil, rowShort
	}
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		v, ok := ParseNumber(parts[i])
		if !ok {
			return nil, rowInvalid
		}
		values[i] = v
	}
	return values, rowOK
}

// ParseNumber parses a trimmed, finite float.
func ParseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// DetectDelimiter picks ';' when the line contains one, ',' otherwise.
func DetectDelimiter(line string) rune {
	if strings.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}

// SplitHeader splits a header line and drops empty names.
func SplitHeader(line string, sep rune) []string {
	var names []string
	for _, part := range strings.Split(line, string(sep)) {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// UniqueNames suffixes repeated names with _2, _3, ... so every column
// keeps its own data.
func UniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	counts := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		counts[n]++
		if counts[n] == 1 {
			out[i] = n
			continue
		}
		candidate := n
		for k := counts[n]; ; k++ {
			candidate = fmt.Sprintf("%s_%d", n, k)
			if !seen[candidate] {
				counts[n] = k
				break
			}
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}

// SplitLines splits on \n, \r\n and \r.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func firstNonBlank(lines []string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			return i
		}
	}
	return -1
}
