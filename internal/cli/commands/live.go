package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/config"
	"github.com/vignelab/vignelab/pkg/metrics"
	"github.com/vignelab/vignelab/pkg/monitor"
	"github.com/vignelab/vignelab/pkg/output"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/serialport"
	"github.com/vignelab/vignelab/pkg/store"
)

// LiveOptions holds command-line options for the live command.
type LiveOptions struct {
	ReportOptions

	Port        string
	Baud        int
	FromLog     []string
	Mode        string
	Duration    time.Duration
	MaxPoints   int
	MetricsAddr string
}

// NewLiveCommand creates the live command.
func NewLiveCommand() *cobra.Command {
	opts := &LiveOptions{}

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Monitor the sensor rig over its serial link",
		Long: `Read telemetry from the sensor rig, keep the most recent samples and
chart one of the fixed modes (NDVI, TEMP, HUM, ACCEL).

Lines are polled every poll_interval. The weather line closes each firmware
cycle; only then is a sample stored. With --png the chart file is refreshed
after every stored sample.

A recorded serial log can be replayed instead of a port with --from-log.

The run ends on Ctrl-C, after --duration, or at the end of a recorded log.

Exit codes:
  0 - Vine health is healthy or stressed (or no data)
  1 - Vine health is alert
  2 - Configuration or runtime error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, args, opts)
		},
	}

	addReportFlags(cmd, &opts.ReportOptions)
	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "Serial port (overrides config)")
	cmd.Flags().IntVar(&opts.Baud, "baud", 0, "Baud rate (overrides config)")
	cmd.Flags().StringSliceVar(&opts.FromLog, "from-log", nil, "Replay recorded serial log file(s) or globs instead of a port")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Chart mode (NDVI|TEMP|HUM|ACCEL)")
	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().IntVar(&opts.MaxPoints, "max-points", -1, "Samples kept (0 = unbounded, default from config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address")

	return cmd
}

func runLive(cmd *cobra.Command, _ []string, opts *LiveOptions) error {
	ctx := commandContext(cmd)
	started := time.Now()

	cfg, err := loadConfig(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := applyLiveFlags(cfg, opts); err != nil {
		return err
	}

	mode, err := resolveMode(cfg, opts.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	mt := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := mt.Serve(ctx, cfg.Metrics.Listen); err != nil {
				slog.Error("metrics endpoint stopped", "addr", cfg.Metrics.Listen, "error", err)
			}
		}()
		slog.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	st := store.New(
		store.WithMaxPoints(cfg.History.MaxPoints),
		store.WithTimeStep(cfg.History.TimeStep),
	)
	p := parser.New(cfg.Protocol.Grammar())

	src, sources, err := openLiveSource(cfg, opts)
	var m *monitor.Monitor
	if err != nil {
		var terr *serialport.TransportError
		if !errors.As(err, &terr) {
			return err
		}
		// The dashboard still reports, with no data.
		slog.Error("serial port unavailable", "port", terr.Port, "error", terr.Err)
	} else {
		m = monitor.New(src, p, st,
			monitor.WithLogger(slog.Default()),
			monitor.WithMetrics(mt),
			monitor.WithPollInterval(cfg.PollInterval),
			monitor.WithCommitHook(func(ts float64, snap store.Snapshot, state *parser.FieldState) {
				slog.Info("sample stored",
					"t", ts,
					"ndvi", snap.Values[parser.FieldNDVI],
					"health", snap.Health,
					"label", state.Label,
				)
				if opts.PNG != "" {
					refreshPNG(ctx, cfg, mode, st, opts.PNG)
				}
			}),
		)

		if len(opts.FromLog) > 0 {
			err = m.Drain(ctx)
		} else {
			err = m.Run(ctx)
		}
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("monitoring: %w", err)
		}
	}

	label := parser.DefaultLabel
	skipped := 0
	if m != nil {
		label = m.State().Label
		skipped = m.Stats().Skipped
	}

	report := output.NewStoreReport("live", st, label)
	report.Summary.Skipped = skipped
	report.Metadata.ConfigFile = opts.ConfigPath
	report.Metadata.Sources = sources
	report.Metadata.Duration = time.Since(started)

	spec, err := chart.SelectMode(mode, chart.VariantLive, st)
	if err != nil {
		return err
	}

	// Outputs are written after the loop stopped, so use a fresh context.
	outCtx := context.WithoutCancel(ctx)
	if err := writeCharts(outCtx, cfg, &opts.ReportOptions, report, spec); err != nil {
		return err
	}
	return finishReport(outCtx, cfg, &opts.ReportOptions, report, cmd.OutOrStdout())
}

// applyLiveFlags lets explicit flags override the configuration.
func applyLiveFlags(cfg *config.Config, opts *LiveOptions) error {
	if opts.Port != "" {
		cfg.Serial.Port = opts.Port
	}
	if opts.Baud > 0 {
		cfg.Serial.Baud = opts.Baud
	}
	if opts.MaxPoints >= 0 {
		cfg.History.MaxPoints = opts.MaxPoints
	}
	if opts.MetricsAddr != "" {
		if err := config.ValidateListenAddr(opts.MetricsAddr); err != nil {
			return fmt.Errorf("--metrics-addr: %w", err)
		}
		cfg.Metrics.Listen = opts.MetricsAddr
	}
	return nil
}

// resolveMode returns the flag mode, or the configured one.
func resolveMode(cfg *config.Config, flag string) (chart.Mode, error) {
	if flag == "" {
		flag = cfg.Chart.Mode
	}
	return chart.ParseMode(flag)
}

// openLiveSource opens the recorded logs or the serial port.
func openLiveSource(cfg *config.Config, opts *LiveOptions) (parser.LineSource, []string, error) {
	if len(opts.FromLog) > 0 {
		files, err := parser.ExpandGlobs(opts.FromLog)
		if err != nil {
			return nil, nil, fmt.Errorf("expanding log files: %w", err)
		}
		if len(files) == 0 {
			return nil, nil, fmt.Errorf("no log files matched patterns: %v", opts.FromLog)
		}
		return parser.NewFileSource(files), files, nil
	}

	src, err := serialport.Open(cfg.Serial.SourceConfig())
	if err != nil {
		return nil, []string{cfg.Serial.Port}, err
	}
	slog.Info("serial port open", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
	return src, []string{cfg.Serial.Port}, nil
}

// refreshPNG redraws the live chart file. Errors are logged only.
func refreshPNG(ctx context.Context, cfg *config.Config, mode chart.Mode, st *store.Store, path string) {
	spec, err := chart.SelectMode(mode, chart.VariantLive, st)
	if err != nil {
		slog.Warn("chart refresh failed", "error", err)
		return
	}
	png := output.NewPNGRenderer(cfg.Chart.Width, cfg.Chart.Height)
	if err := renderFile(ctx, png, spec, path); err != nil {
		slog.Warn("chart refresh failed", "path", path, "error", err)
	}
}
