package ingest

import "strings"

// Column-name keywords used by the axis heuristics.
var (
	TimeKeywords   = []string{"Temps", "Time"}
	HealthKeywords = []string{"NDVI"}
)

// IsTimeColumn reports whether a column name looks like a time axis.
func IsTimeColumn(name string) bool {
	return containsAny(name, TimeKeywords)
}

// DefaultAxes picks the initial X and Y column indexes: X is the first
// time-like column (else 0), Y the first NDVI column (else 1, or 0 when
// there is a single column).
func DefaultAxes(columns []string) (x, y int) {
	for i, c := range columns {
		if containsAny(c, TimeKeywords) {
			x = i
			break
		}
	}
	y = 0
	if len(columns) > 1 {
		y = 1
	}
	for i, c := range columns {
		if containsAny(c, HealthKeywords) {
			y = i
			break
		}
	}
	return x, y
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
