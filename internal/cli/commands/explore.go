package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/config"
	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/metrics"
	"github.com/vignelab/vignelab/pkg/output"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 200 * time.Millisecond

// ExploreOptions holds command-line options for the explore command.
type ExploreOptions struct {
	ReportOptions

	X     string
	Y     string
	XLSX  string
	Watch bool
}

// NewExploreCommand creates the explore command.
func NewExploreCommand() *cobra.Command {
	opts := &ExploreOptions{}

	cmd := &cobra.Command{
		Use:   "explore <file.csv>",
		Short: "Chart any two columns of a numeric CSV file",
		Long: `Load any numeric CSV file and chart one column against another.

The header names the columns. ';' files use commas as decimal separators,
',' files use points. Rows that are short or hold a non-numeric value are
skipped whole.

Without --x/--y, X is the first column whose name contains "Temps" or "Time"
and Y the first containing "NDVI". A time-like X gives a connected line,
any other X an unconnected scatter.

With --watch the file is reloaded and the outputs rewritten whenever it
changes, until interrupted.

Example:
  vignelab explore field.csv --png field.png
  vignelab explore field.csv --x Temperature --y NDVI --pdf report.pdf
  vignelab explore field.csv --xlsx field.xlsx --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(cmd, args, opts)
		},
	}

	addReportFlags(cmd, &opts.ReportOptions)
	cmd.Flags().StringVar(&opts.X, "x", "", "X column name")
	cmd.Flags().StringVar(&opts.Y, "y", "", "Y column name")
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "Export the table to an XLSX workbook")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Reload when the file changes")

	return cmd
}

func runExplore(cmd *cobra.Command, args []string, opts *ExploreOptions) error {
	path := args[0]
	ctx := commandContext(cmd)

	cfg, err := loadConfig(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}

	if !opts.Watch {
		report, _, err := exploreOnce(ctx, cfg, path, opts)
		if err != nil {
			return err
		}
		return finishReport(ctx, cfg, &opts.ReportOptions, report, cmd.OutOrStdout())
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchExplore(ctx, cfg, path, opts, cmd.OutOrStdout())
}

// exploreOnce loads the file and writes every requested output.
func exploreOnce(ctx context.Context, cfg *config.Config, path string, opts *ExploreOptions) (*output.Report, *ingest.Table, error) {
	started := time.Now()

	tbl, err := ingest.IngestFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", path, err)
	}

	x, y := resolveAxes(tbl, opts.X, opts.Y)
	spec, err := chart.SelectAxes(tbl, x, y)
	if err != nil {
		return nil, tbl, err
	}

	report := output.NewTableReport("explore", tbl)
	report.Metadata.ConfigFile = opts.ConfigPath
	report.Metadata.Sources = []string{path}

	if err := writeCharts(ctx, cfg, &opts.ReportOptions, report, spec); err != nil {
		return nil, tbl, err
	}

	if opts.XLSX != "" {
		if err := writeXLSXFile(tbl, opts.XLSX); err != nil {
			return nil, tbl, err
		}
		report.Outputs = append(report.Outputs, opts.XLSX)
	}

	report.Metadata.Duration = time.Since(started)
	return report, tbl, nil
}

// resolveAxes fills unset axis names from the column heuristics.
func resolveAxes(tbl *ingest.Table, x, y string) (string, string) {
	dx, dy := ingest.DefaultAxes(tbl.Columns)
	if x == "" {
		x = tbl.Columns[dx]
	}
	if y == "" {
		y = tbl.Columns[dy]
	}
	return x, y
}

func writeXLSXFile(tbl *ingest.Table, path string) error {
	f, err := os.Create(path) // #nosec G304 -- user-selected output path
	if err != nil {
		return fmt.Errorf("creating xlsx output: %w", err)
	}
	if err := output.WriteXLSX(tbl, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return f.Close()
}

// watchExplore reloads path on every change until ctx is done. A failed
// reload is logged and the previous outputs are kept.
func watchExplore(ctx context.Context, cfg *config.Config, path string, opts *ExploreOptions, w io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var mt *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		mt = metrics.New()
		go func() {
			if err := mt.Serve(ctx, cfg.Metrics.Listen); err != nil {
				slog.Error("metrics endpoint stopped", "addr", cfg.Metrics.Listen, "error", err)
			}
		}()
	}

	load := func() error {
		report, tbl, err := exploreOnce(ctx, cfg, path, opts)
		if err != nil {
			return err
		}
		if mt != nil {
			mt.ObserveIngest(tbl.Stats)
		}
		return finishReport(ctx, cfg, &opts.ReportOptions, report, w)
	}
	if err := load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	slog.Info("watching for changes", "file", abs)

	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)

		case <-timer.C:
			slog.Info("file changed, reloading", "file", abs)
			if err := load(); err != nil {
				slog.Warn("reload failed", "file", abs, "error", err)
			}
		}
	}
}
