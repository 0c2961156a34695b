// Package ingest converts delimited sensor files into column-oriented
// numeric tables.
package ingest

import (
	"slices"
)

// Table is a column-oriented numeric dataset. Every column has exactly
// Rows values.
type Table struct {
	// Columns lists the column names in header order.
	Columns []string

	// Data maps a column name to its values.
	Data map[string][]float64

	// Rows is the number of accepted rows.
	Rows int

	// Delimiter is the field separator that was detected.
	Delimiter rune

	// DecimalComma is true when commas were read as decimal points.
	DecimalComma bool

	// Stats counts accepted and rejected lines.
	Stats Stats
}

// Stats counts what happened to each data line.
type Stats struct {
	Accepted    int `json:"accepted"`
	ShortRows   int `json:"short_rows"`
	InvalidRows int `json:"invalid_rows"`
	BlankLines  int `json:"blank_lines"`
}

// Skipped returns the number of rejected non-blank rows.
func (s Stats) Skipped() int {
	return s.ShortRows + s.InvalidRows
}

// Column returns the values of one column.
func (t *Table) Column(name string) ([]float64, bool) {
	v, ok := t.Data[name]
	return v, ok
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = t.Data[c][i]
	}
	return row
}

// Last returns the final row keyed by column name, or nil when empty.
func (t *Table) Last() map[string]float64 {
	if t.Rows == 0 {
		return nil
	}
	last := make(map[string]float64, len(t.Columns))
	for _, c := range t.Columns {
		last[c] = t.Data[c][t.Rows-1]
	}
	return last
}
