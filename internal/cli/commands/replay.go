package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/output"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

// ReplayOptions holds command-line options for the replay command.
type ReplayOptions struct {
	ReportOptions

	Mode string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand() *cobra.Command {
	opts := &ReplayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <file.csv>",
		Short: "Chart the full history of an SD-card CSV log",
		Long: `Load a CSV log written by the rig's SD card and chart its whole history.

The file must have the fixed header
  Time_ms;Temp;Hum;Pressure;NDVI;ax;ay;az
Columns are read by position, Time_ms is converted to seconds and Pressure
is ignored. With ';' delimiters, commas are decimal separators. Short or
non-numeric rows are skipped, as are rows whose time does not increase.

Exit codes:
  0 - Last NDVI is healthy or stressed
  1 - Last NDVI is alert
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args, opts)
		},
	}

	addReportFlags(cmd, &opts.ReportOptions)
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Chart mode (NDVI|TEMP|HUM|ACCEL)")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string, opts *ReplayOptions) error {
	path := args[0]
	ctx := commandContext(cmd)
	started := time.Now()

	cfg, err := loadConfig(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}

	mode, err := resolveMode(cfg, opts.Mode)
	if err != nil {
		return err
	}

	samples, stats, err := ingest.ReadFixedFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	st, outOfOrder := loadHistory(samples)
	if outOfOrder > 0 {
		slog.Warn("rows with non-increasing time skipped", "file", path, "rows", outOfOrder)
	}

	report := output.NewStoreReport("replay", st, "")
	report.Rows = &stats
	report.Summary.Skipped = stats.Skipped() + outOfOrder
	report.Metadata.ConfigFile = opts.ConfigPath
	report.Metadata.Sources = []string{path}
	report.Metadata.Duration = time.Since(started)

	spec, err := chart.SelectMode(mode, chart.VariantHistory, st)
	if err != nil {
		return err
	}

	if err := writeCharts(ctx, cfg, &opts.ReportOptions, report, spec); err != nil {
		return err
	}
	return finishReport(ctx, cfg, &opts.ReportOptions, report, cmd.OutOrStdout())
}

// loadHistory fills an unbounded store with samples in file order and
// returns how many were dropped for a non-increasing timestamp.
func loadHistory(samples []parser.Sample) (*store.Store, int) {
	st := store.New(store.WithMaxPoints(0))
	dropped := 0
	for _, s := range samples {
		if err := st.AppendAt(s.Time, s.Values); err != nil {
			slog.Debug("sample skipped", "time", s.Time, "error", err)
			dropped++
		}
	}
	return st, dropped
}
