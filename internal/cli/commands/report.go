package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/config"
	"github.com/vignelab/vignelab/pkg/output"
	"github.com/vignelab/vignelab/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// ReportOptions holds the output flags shared by live, replay and explore.
type ReportOptions struct {
	ConfigPath string
	Output     string
	Verbose    bool
	Quiet      bool

	PNG string
	PDF string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// addReportFlags registers the shared flags on cmd.
func addReportFlags(cmd *cobra.Command, opts *ReportOptions) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file (defaults apply when omitted)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show per-series statistics and run metadata")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().StringVar(&opts.PNG, "png", "", "Write the chart to a PNG file")
	cmd.Flags().StringVar(&opts.PDF, "pdf", "", "Write a one-page PDF report")

	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnAlert), "When to fire webhook (on_alert|always|never)")
}

// commandContext returns the command context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig loads path, or the defaults when path is empty.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.LoadDefault(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading defaults: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func createFormatter(opts *ReportOptions) (output.Formatter, error) {
	f, ok := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
	return f, nil
}

// renderFile renders spec with r into path.
func renderFile(ctx context.Context, r output.Renderer, spec *chart.RenderSpec, path string) error {
	f, err := os.Create(path) // #nosec G304 -- user-selected output path
	if err != nil {
		return fmt.Errorf("creating %s output: %w", r.Name(), err)
	}
	if err := r.Render(ctx, spec, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("rendering %s: %w", r.Name(), err)
	}
	return f.Close()
}

// writeCharts writes the PNG and PDF outputs requested in opts and records
// them on the report. An empty chart is skipped for PNG with a warning.
func writeCharts(ctx context.Context, cfg *config.Config, opts *ReportOptions, report *output.Report, spec *chart.RenderSpec) error {
	report.SetChart(spec)
	png := output.NewPNGRenderer(cfg.Chart.Width, cfg.Chart.Height)

	if opts.PNG != "" {
		if spec.Points() == 0 {
			slog.Warn("no data to chart, PNG not written", "path", opts.PNG)
		} else {
			if err := renderFile(ctx, png, spec, opts.PNG); err != nil {
				return err
			}
			report.Outputs = append(report.Outputs, opts.PNG)
		}
	}

	if opts.PDF != "" {
		if err := renderFile(ctx, output.NewPDFRenderer(png, report), spec, opts.PDF); err != nil {
			return err
		}
		report.Outputs = append(report.Outputs, opts.PDF)
	}
	return nil
}

// finishReport prints the report, sends webhooks and sets the exit code.
func finishReport(ctx context.Context, cfg *config.Config, opts *ReportOptions, report *output.Report, w io.Writer) error {
	// Each report decides the exit code on its own, including reloads.
	ExitCode = 0

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	if err := formatter.Format(ctx, report, w); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are logged but never fail the run.
	sendWebhooks(ctx, cfg, opts, report)

	if report.IsAlert() {
		ExitCode = 1
	}
	return nil
}

// sendWebhooks sends the report to all configured webhooks.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *ReportOptions, report *output.Report) map[string]*webhook.Response {
	hooks := collectWebhooks(cfg, opts)
	if len(hooks) == 0 {
		return nil
	}
	return webhook.NewClient().Notify(ctx, hooks, report)
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ReportOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnAlert
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
