package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/detector"
	"github.com/vignelab/vignelab/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Identify a telemetry file and suggest how to open it",
		Long: `Sample the head of a file and report what it holds:

  - a recorded serial log (health, acceleration and weather lines)
  - an SD-card CSV log with the fixed Time_ms;Temp;...;az header
  - any other numeric CSV

For logs, the line categories, committed cycles and last device label are
shown. For CSV files, the delimiter, decimal convention, header and default
chart axes are shown. The matching vignelab command is suggested.

Optionally generates a starter config file with --write-config.

Example:
  vignelab detect capture.log
  vignelab detect --sample 500 LOG001.CSV
  vignelab detect -w vignelab.yaml capture.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	file := args[0]
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	if _, err := os.Stat(file); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", file)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(ctx, file)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(result, file, opts.WriteConfig, w); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(result, file, w)
	default:
		return outputDetectText(result, file, w)
	}
}

func outputDetectText(result *detector.DetectionResult, file string, w io.Writer) error {
	fmt.Fprintln(w, "=== Telemetry File Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", file)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintln(w)

	if result.Kind == detector.KindUnknown {
		fmt.Fprintln(w, "No telemetry format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: serial logs need health, acceleration or weather lines;")
		fmt.Fprintln(w, "CSV files need a header and numeric rows.")
		return nil
	}

	fmt.Fprintf(w, "Detected: %s\n", result.Kind.Description())
	fmt.Fprintf(w, "Confidence: %.1f%%\n", result.Confidence*100)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample line:\n  %s\n", truncate(result.SampleLine, 100))
	fmt.Fprintln(w)

	if result.Kind == detector.KindSerialLog {
		fmt.Fprintln(w, "Line categories:")
		cats := make([]parser.Category, 0, len(result.Categories))
		for c := range result.Categories {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
		for _, c := range cats {
			fmt.Fprintf(w, "  %-10s %d\n", c, result.Categories[c])
		}
		fmt.Fprintf(w, "  %-10s %d\n", "other", result.Unrecognized)
		fmt.Fprintf(w, "Complete cycles: %d\n", result.Commits)
		if result.LastLabel != "" {
			fmt.Fprintf(w, "Last device label: %s\n", result.LastLabel)
		}
	} else {
		decimal := "point"
		if result.DecimalComma {
			decimal = "comma"
		}
		fmt.Fprintf(w, "Delimiter: %q  Decimal: %s\n", result.Delimiter, decimal)
		fmt.Fprintf(w, "Columns: %s\n", strings.Join(result.Header, ", "))
		fmt.Fprintf(w, "Valid rows: %d\n", result.ValidRows)
		fmt.Fprintf(w, "Default axes: X=%s  Y=%s\n", result.SuggestedX, result.SuggestedY)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Suggested command ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", result.Command(file))
	fmt.Fprintln(w)

	return nil
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File    string                     `json:"file"`
	Command string                     `json:"command,omitempty"`
	Result  *detector.DetectionResult `json:"result"`
}

func outputDetectJSON(result *detector.DetectionResult, file string, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(JSONOutput{
		File:    file,
		Command: result.Command(file),
		Result:  result,
	})
}

// writeStarterConfig generates a starter config file for the detected file.
func writeStarterConfig(result *detector.DetectionResult, file, configPath string, w io.Writer) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if result.Kind == detector.KindUnknown {
		return fmt.Errorf("cannot generate config: no telemetry format detected")
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(generateStarterConfig(file, result)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(file string, result *detector.DetectionResult) string {
	absFile := file
	if abs, err := filepath.Abs(file); err == nil {
		absFile = abs
	}

	mode := "NDVI"
	if result.IsCSV() && !strings.Contains(strings.Join(result.Header, " "), "NDVI") {
		mode = "TEMP"
	}

	return fmt.Sprintf(`# VigneLab Configuration
# Generated by: vignelab detect
# Detected: %s (%.0f%% confidence)
# Source: %s
# Run: %s

serial:
  port: /dev/ttyUSB0
  baud: 115200
  read_timeout: 1s

poll_interval: 100ms

history:
  max_points: 50   # 0 keeps every sample
  time_step: 10    # seconds between firmware cycles

protocol:
  health_keyword: "NDVI"
  accel_keyword: "ACCÉLÉRATION"
  weather_keyword: "MÉTÉO"
  temperature_unit: "°C"
  humidity_unit: "%% Hum"
  state_arrow: "->"

chart:
  mode: %s
  width: 900
  height: 500

metrics:
  listen: ""       # e.g. ":9100"

# webhooks:
#   - name: alert
#     url: https://hooks.example.com/vine
#     token: ${VIGNELAB_WEBHOOK_TOKEN}
#     trigger: on_alert
`, result.Kind, result.Confidence*100, absFile, result.Command(file), mode)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
