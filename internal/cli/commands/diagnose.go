package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/config"
	"github.com/vignelab/vignelab/pkg/detector"
	"github.com/vignelab/vignelab/pkg/serialport"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
	Logs    []string
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// listPorts is replaced in tests.
var listPorts = serialport.List

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [config-file]",
		Short: "Diagnose configuration and serial link issues",
		Long: `Diagnose common configuration and connection issues.

This command checks:
- Config file syntax and structure (defaults when no file is given)
- Serial ports present on this machine
- Whether the configured port is one of them
- Protocol keywords against recorded logs given with --log
- Webhook and metrics settings

Example:
  vignelab diagnose
  vignelab diagnose vignelab.yaml --log capture.log
  vignelab diagnose -v vignelab.yaml  # verbose output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runDiagnose(commandContext(cmd), path, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")
	cmd.Flags().StringSliceVar(&opts.Logs, "log", nil, "Recorded serial log(s) to check against the protocol")

	return cmd
}

func runDiagnose(ctx context.Context, configPath string, opts *DiagnoseOptions, w io.Writer) error {
	results := []DiagnosticResult{}

	var cfg *config.Config
	if configPath != "" {
		result := checkConfigExists(configPath)
		results = append(results, result)
		if result.Status == "error" {
			printDiagnostics(results, opts, w)
			return nil
		}

		cfg, result = checkConfigParseable(ctx, configPath)
		results = append(results, result)
		if result.Status == "error" {
			printDiagnostics(results, opts, w)
			return nil
		}
	} else {
		var result DiagnosticResult
		cfg, result = checkDefaults(ctx)
		results = append(results, result)
		if result.Status == "error" {
			printDiagnostics(results, opts, w)
			return nil
		}
	}

	results = append(results, checkSerialPort(cfg)...)
	results = append(results, checkLogs(ctx, cfg, opts)...)
	results = append(results, checkMetrics(cfg)...)
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(results, opts, w)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'vignelab detect <file> --write-config vignelab.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'vignelab detect <file> --write-config vignelab.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = configDetails(cfg)
	return cfg, result
}

func checkDefaults(ctx context.Context) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Configuration",
	}

	cfg, err := config.LoadDefault(ctx)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Invalid environment overrides: %v", err)
		result.Suggests = []string{
			fmt.Sprintf("Check %s, %s and %s", config.EnvSerialPort, config.EnvSerialBaud, config.EnvMetricsAddr),
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "No config file given, using defaults"
	result.Details = configDetails(cfg)
	return cfg, result
}

func configDetails(cfg *config.Config) []string {
	return []string{
		fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud),
		fmt.Sprintf("History: %d points, %gs step", cfg.History.MaxPoints, cfg.History.TimeStep),
		fmt.Sprintf("Chart: %s (%dx%d)", cfg.Chart.Mode, cfg.Chart.Width, cfg.Chart.Height),
	}
}

func checkSerialPort(cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	ports, err := listPorts()
	listResult := DiagnosticResult{Check: "Serial Ports"}
	switch {
	case err != nil:
		listResult.Status = "warning"
		listResult.Message = fmt.Sprintf("Cannot enumerate ports: %v", err)
		results = append(results, listResult)
		return results
	case len(ports) == 0:
		listResult.Status = "warning"
		listResult.Message = "No serial ports found"
		listResult.Suggests = []string{
			"Check the rig is plugged in and powered",
			"On Linux, check you are in the dialout group",
		}
	default:
		listResult.Status = "ok"
		listResult.Message = fmt.Sprintf("Found %d port(s)", len(ports))
		listResult.Details = ports
	}
	results = append(results, listResult)

	portResult := DiagnosticResult{Check: fmt.Sprintf("Configured Port: %s", cfg.Serial.Port)}
	if slices.Contains(ports, cfg.Serial.Port) {
		portResult.Status = "ok"
		portResult.Message = fmt.Sprintf("Present (%d baud)", cfg.Serial.Baud)
	} else {
		portResult.Status = "warning"
		portResult.Message = "Port not found on this machine"
		portResult.Suggests = []string{
			fmt.Sprintf("Set serial.port in the config or %s", config.EnvSerialPort),
		}
		if len(ports) > 0 {
			portResult.Suggests = append(portResult.Suggests, fmt.Sprintf("Available: %s", strings.Join(ports, ", ")))
		}
	}
	results = append(results, portResult)

	return results
}

func checkLogs(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	d := detector.New(
		detector.WithSampleSize(50),
		detector.WithGrammar(cfg.Protocol.Grammar()),
	)

	for _, logFile := range opts.Logs {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Protocol Test: %s", logFile),
		}

		det, err := d.DetectFromFile(ctx, logFile)
		if err != nil {
			result.Status = "error"
			result.Message = fmt.Sprintf("Cannot read file: %v", err)
			results = append(results, result)
			continue
		}

		switch {
		case det.Kind == detector.KindSerialLog && det.Commits > 0:
			result.Status = "ok"
			result.Message = fmt.Sprintf("%d complete cycle(s) in %d sampled lines", det.Commits, det.SampledLines)
			if opts.Verbose {
				for cat, n := range det.Categories {
					result.Details = append(result.Details, fmt.Sprintf("%s: %d", cat, n))
				}
			}
		case det.Kind == detector.KindSerialLog:
			result.Status = "warning"
			result.Message = "Protocol lines found but no weather line closed a cycle"
			result.Suggests = []string{
				"Check protocol.weather_keyword, temperature_unit and humidity_unit",
			}
		case det.IsCSV():
			result.Status = "warning"
			result.Message = fmt.Sprintf("File is a CSV (%s), not a serial log", det.Kind)
			result.Suggests = []string{det.Command(logFile)}
		default:
			result.Status = "error"
			result.Message = "No protocol line recognised"
			result.Suggests = []string{
				"Check the protocol keywords match the firmware output",
			}
			if det.SampledLines > 0 {
				result.Suggests = append(result.Suggests, "Use 'vignelab detect "+logFile+"' to inspect the file")
			}
		}

		results = append(results, result)
	}

	return results
}

func checkMetrics(cfg *config.Config) []DiagnosticResult {
	if cfg.Metrics.Listen == "" {
		return nil
	}

	result := DiagnosticResult{Check: "Metrics Endpoint"}
	ln, err := net.Listen("tcp", cfg.Metrics.Listen)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot listen on %s: %v", cfg.Metrics.Listen, err)
		result.Suggests = []string{"Pick a free address for metrics.listen"}
		return []DiagnosticResult{result}
	}
	_ = ln.Close()

	result.Status = "ok"
	result.Message = fmt.Sprintf("Address %s is available", cfg.Metrics.Listen)
	return []DiagnosticResult{result}
}

func printDiagnostics(results []DiagnosticResult, opts *DiagnoseOptions, w io.Writer) {
	fmt.Fprintln(w, "=== VigneLab Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before monitoring.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		if wh.Trigger != "" {
			switch wh.Trigger {
			case config.WebhookTriggerOnAlert, config.WebhookTriggerAlways, config.WebhookTriggerNever:
			default:
				issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_alert, always, or never)", wh.Trigger))
			}
		}

		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		if len(issues) > 0 {
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		} else if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", triggerName(wh.Trigger))
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}

			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func triggerName(t config.WebhookTrigger) string {
	if t == "" {
		return string(config.WebhookTriggerOnAlert)
	}
	return string(t)
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}
