// Package output formats monitoring reports and renders charts to PNG,
// PDF and spreadsheet files.
package output

import (
	"math"
	"time"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

// Report is the complete output of one command run.
type Report struct {
	// Summary provides aggregate counts and the health verdict.
	Summary Summary `json:"summary"`

	// Snapshot is the latest stored sample, when a store was involved.
	Snapshot *store.Snapshot `json:"snapshot,omitempty"`

	// Label is the state label last reported by the device.
	Label string `json:"label,omitempty"`

	// Columns holds per-series statistics.
	Columns []ColumnStats `json:"columns,omitempty"`

	// Rows counts accepted and rejected CSV rows.
	Rows *ingest.Stats `json:"rows,omitempty"`

	// Chart describes the chart that was rendered, if any.
	Chart *ChartInfo `json:"chart,omitempty"`

	// Outputs lists the files written.
	Outputs []string `json:"outputs,omitempty"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// Mode is the command variant: live, replay or explore.
	Mode string `json:"mode"`

	// Samples is the number of samples or rows retained.
	Samples int `json:"samples"`

	// Skipped is the number of lines or rows that were ignored.
	Skipped int `json:"skipped"`

	// Evicted is the number of samples dropped by the bounded store.
	Evicted int `json:"evicted"`

	// Health is the state derived from the latest NDVI value.
	Health store.Health `json:"health,omitempty"`
}

// ColumnStats summarizes one series.
type ColumnStats struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Last  float64 `json:"last"`
}

// ChartInfo describes a rendered chart.
type ChartInfo struct {
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	Series int    `json:"series"`
	Points int    `json:"points"`
}

// Metadata provides context about the run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the files or ports that were read.
	Sources []string `json:"sources"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewStoreReport builds a report from a store and the device label.
func NewStoreReport(mode string, st *store.Store, label string) *Report {
	snap := st.Snapshot()
	r := &Report{
		Summary: Summary{
			Mode:    mode,
			Samples: st.Len(),
			Evicted: st.Evicted(),
			Health:  snap.Health,
		},
		Snapshot: &snap,
		Label:    label,
		Metadata: Metadata{GeneratedAt: time.Now()},
	}
	for _, f := range st.Fields() {
		_, values, _ := st.SeriesFor(f)
		if cs, ok := columnStats(f, values); ok {
			r.Columns = append(r.Columns, cs)
		}
	}
	return r
}

// NewTableReport builds a report from an ingested table. Health is set
// when the table has an NDVI column.
func NewTableReport(mode string, tbl *ingest.Table) *Report {
	stats := tbl.Stats
	r := &Report{
		Summary: Summary{
			Mode:    mode,
			Samples: tbl.Rows,
			Skipped: stats.Skipped(),
		},
		Rows:     &stats,
		Metadata: Metadata{GeneratedAt: time.Now()},
	}
	for _, c := range tbl.Columns {
		if cs, ok := columnStats(c, tbl.Data[c]); ok {
			r.Columns = append(r.Columns, cs)
		}
	}
	if values, ok := tbl.Column(parser.FieldNDVI); ok && len(values) > 0 {
		r.Summary.Health = store.HealthOf(values[len(values)-1])
	}
	return r
}

// SetChart records the chart that was rendered.
func (r *Report) SetChart(spec *chart.RenderSpec) {
	r.Chart = &ChartInfo{
		Title:  spec.Title,
		XLabel: spec.XLabel,
		YLabel: spec.YLabel,
		Series: len(spec.Series),
		Points: spec.Points(),
	}
}

// IsAlert returns true if the latest health state is alert.
func (r *Report) IsAlert() bool {
	return r.Summary.Health == store.HealthAlert
}

func columnStats(name string, values []float64) (ColumnStats, bool) {
	if len(values) == 0 {
		return ColumnStats{}, false
	}
	cs := ColumnStats{
		Name:  name,
		Count: len(values),
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
		Last:  values[len(values)-1],
	}
	// Running mean; a plain sum overflows near math.MaxFloat64.
	for i, v := range values {
		cs.Min = math.Min(cs.Min, v)
		cs.Max = math.Max(cs.Max, v)
		cs.Mean += (v - cs.Mean) / float64(i+1)
	}
	return cs, true
}
