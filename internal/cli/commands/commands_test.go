package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/config"
	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/output"
	"github.com/vignelab/vignelab/pkg/store"
)

const serialLog = `SANTÉ FEUILLE (NDVI) : 0.62 -> [ SAINE ]
ACCÉLÉRATION X: 0.01 | Y: 0.02 | Z: 9.81
MÉTÉO | 21.0°C | 60.0% Hum
garbage line
SANTÉ FEUILLE (NDVI) : 0.35 -> [ STRESS ]
ACCÉLÉRATION X: 0.03 | Y: 0.01 | Z: 9.80
MÉTÉO | 22.5°C | 58.0% Hum
`

const fixedCSV = `Time_ms;Temp;Hum;Pressure;NDVI;ax;ay;az
0;20,0;61,0;1013,0;0,70;0,0;0,0;9,8
1000;20,5;60,5;1013,1;0,55;0,0;0,1;9,8
1000;20,6;60,4;1013,1;0,54;0,0;0,1;9,8
2000;21,0;oops;1013,2;0,50;0,0;0,0;9,8
3000;21,5;59,0
4000;22,0;58,0;1013,3;0,15;0,1;0,0;9,7
`

const genericCSV = `Temps (s),Temperature,Humidite,NDVI
0,20.0,61,0.70
10,20.5,60,0.66
20,21.0,59,0.61
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// runCommand executes cmd with args and returns its stdout.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	ExitCode = 0
	t.Cleanup(func() { ExitCode = 0 })

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, out string) *output.Report {
	t.Helper()
	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, out)
	}
	return &report
}

func TestNewLiveCommand(t *testing.T) {
	cmd := NewLiveCommand()

	if cmd.Use != "live" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	flags := []string{"config", "output", "verbose", "quiet", "png", "pdf", "port", "baud", "from-log", "mode", "duration", "max-points", "metrics-addr", "webhook-url"}
	for _, flag := range flags {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Missing flag: %s", flag)
		}
	}
}

func TestNewReplayCommand(t *testing.T) {
	cmd := NewReplayCommand()

	if cmd.Use != "replay <file.csv>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}
	if cmd.Flags().Lookup("mode") == nil {
		t.Error("Missing flag: mode")
	}
}

func TestNewExploreCommand(t *testing.T) {
	cmd := NewExploreCommand()

	if cmd.Use != "explore <file.csv>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	for _, flag := range []string{"x", "y", "xlsx", "watch", "png", "pdf"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Missing flag: %s", flag)
		}
	}
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	if cmd.Use != "validate <config-file>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	if !strings.Contains(cmd.Long, "Validate") {
		t.Error("Missing description in Long")
	}
}

func TestNewVersionCommand(t *testing.T) {
	out, err := runCommand(t, NewVersionCommand())
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "vignelab dev\n" {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestRunValidate_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "config.yaml", `serial:
  port: /dev/ttyACM0
history:
  max_points: 0
chart:
  mode: hum
webhooks:
  - name: alerts
    url: http://localhost:9999/hook
`)

	out, err := runCommand(t, NewValidateCommand(), configPath)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	for _, want := range []string{"Configuration valid!", "/dev/ttyACM0", "unbounded", "HUM", "[on_alert] alerts"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "config.yaml", "history:\n  time_step: -1\n")

	_, err := runCommand(t, NewValidateCommand(), configPath)
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "time_step") {
		t.Errorf("Error should name the field: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := runCommand(t, NewValidateCommand(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCreateFormatter(t *testing.T) {
	tests := []struct {
		output  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			f, err := createFormatter(&ReportOptions{Output: tt.output})
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if f.Name() != tt.output {
				t.Errorf("Expected %s formatter, got %s", tt.output, f.Name())
			}
		})
	}
}

func TestCollectWebhooks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Webhooks = []config.WebhookConfig{{Name: "file", URL: "http://a.example"}}

	hooks := collectWebhooks(cfg, &ReportOptions{})
	if len(hooks) != 1 {
		t.Fatalf("Expected 1 webhook, got %d", len(hooks))
	}

	hooks = collectWebhooks(cfg, &ReportOptions{
		WebhookURL:   "http://b.example",
		WebhookToken: "secret",
	})
	if len(hooks) != 2 {
		t.Fatalf("Expected 2 webhooks, got %d", len(hooks))
	}
	cli := hooks[1]
	if cli.Name != "cli" || cli.Token != "secret" {
		t.Errorf("Unexpected CLI webhook: %+v", cli)
	}
	if cli.Trigger != config.WebhookTriggerOnAlert {
		t.Errorf("Expected on_alert default, got %s", cli.Trigger)
	}
	if cli.Timeout != config.DefaultWebhookTimeout {
		t.Errorf("Expected default timeout, got %s", cli.Timeout)
	}
}

func TestRunReplay_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := writeFile(t, tmpDir, "LOG001.CSV", fixedCSV)

	out, err := runCommand(t, NewReplayCommand(), csvPath, "-o", "json")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	report := decodeReport(t, out)
	if report.Summary.Mode != "replay" {
		t.Errorf("Expected replay mode, got %s", report.Summary.Mode)
	}
	// 6 data rows: 1 duplicate time, 1 invalid, 1 short.
	if report.Summary.Samples != 3 {
		t.Errorf("Expected 3 samples, got %d", report.Summary.Samples)
	}
	if report.Summary.Skipped != 3 {
		t.Errorf("Expected 3 skipped, got %d", report.Summary.Skipped)
	}
	if report.Rows == nil || report.Rows.ShortRows != 1 || report.Rows.InvalidRows != 1 {
		t.Errorf("Unexpected row stats: %+v", report.Rows)
	}
	if report.Summary.Health != store.HealthAlert {
		t.Errorf("Expected alert health, got %s", report.Summary.Health)
	}
	if report.Snapshot == nil || report.Snapshot.Time != 4.0 {
		t.Errorf("Expected last sample at 4s, got %+v", report.Snapshot)
	}
	if report.Chart == nil || report.Chart.Title != "Vine Health (full history)" {
		t.Errorf("Unexpected chart: %+v", report.Chart)
	}
	if ExitCode != 1 {
		t.Errorf("Expected exit code 1 on alert, got %d", ExitCode)
	}
}

func TestRunReplay_ModeAndOutputs(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := writeFile(t, tmpDir, "LOG001.CSV", fixedCSV)
	pngPath := filepath.Join(tmpDir, "temp.png")
	pdfPath := filepath.Join(tmpDir, "temp.pdf")

	out, err := runCommand(t, NewReplayCommand(), csvPath, "--mode", "temp", "--png", pngPath, "--pdf", pdfPath)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if !strings.Contains(out, "Temperature history") {
		t.Errorf("Output missing chart title:\n%s", out)
	}
	for _, p := range []string{pngPath, pdfPath} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("Output not written: %v", err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
	}
	png, _ := os.ReadFile(pngPath)
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("PNG output has no PNG signature")
	}
	pdf, _ := os.ReadFile(pdfPath)
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("PDF output has no PDF header")
	}
}

func TestRunReplay_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	empty := writeFile(t, tmpDir, "empty.csv", "Time_ms;Temp;Hum;Pressure;NDVI;ax;ay;az\n")
	good := writeFile(t, tmpDir, "good.csv", fixedCSV)

	t.Run("missing file", func(t *testing.T) {
		_, err := runCommand(t, NewReplayCommand(), filepath.Join(tmpDir, "nope.csv"))
		if !errors.Is(err, ingest.ErrIO) {
			t.Errorf("Expected ErrIO, got %v", err)
		}
	})

	t.Run("header only", func(t *testing.T) {
		_, err := runCommand(t, NewReplayCommand(), empty)
		if !errors.Is(err, ingest.ErrEmpty) {
			t.Errorf("Expected ErrEmpty, got %v", err)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := runCommand(t, NewReplayCommand(), good, "--mode", "wind")
		if !errors.Is(err, chart.ErrUnknownMode) {
			t.Errorf("Expected ErrUnknownMode, got %v", err)
		}
	})
}

func TestRunExplore_DefaultAxes(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := writeFile(t, tmpDir, "field.csv", genericCSV)
	xlsxPath := filepath.Join(tmpDir, "field.xlsx")

	out, err := runCommand(t, NewExploreCommand(), csvPath, "-o", "json", "--xlsx", xlsxPath)
	if err != nil {
		t.Fatalf("explore failed: %v", err)
	}

	report := decodeReport(t, out)
	if report.Chart == nil || report.Chart.Title != "NDVI vs Temps (s)" {
		t.Fatalf("Unexpected chart: %+v", report.Chart)
	}
	if report.Chart.Points != 3 {
		t.Errorf("Expected 3 points, got %d", report.Chart.Points)
	}
	if report.Summary.Health != store.HealthHealthy {
		t.Errorf("Expected healthy, got %s", report.Summary.Health)
	}
	if len(report.Outputs) != 1 || report.Outputs[0] != xlsxPath {
		t.Errorf("Unexpected outputs: %v", report.Outputs)
	}
	if _, err := os.Stat(xlsxPath); err != nil {
		t.Errorf("XLSX not written: %v", err)
	}
	if ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", ExitCode)
	}
}

func TestRunExplore_Scatter(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := writeFile(t, tmpDir, "field.csv", genericCSV)
	pngPath := filepath.Join(tmpDir, "scatter.png")

	out, err := runCommand(t, NewExploreCommand(), csvPath, "--x", "Temperature", "--y", "Humidite", "--png", pngPath, "-q")
	if err != nil {
		t.Fatalf("explore failed: %v", err)
	}
	if !strings.HasPrefix(out, "VigneLab: explore, 3 samples, 0 skipped") {
		t.Errorf("Unexpected quiet output: %q", out)
	}
	if _, err := os.Stat(pngPath); err != nil {
		t.Errorf("PNG not written: %v", err)
	}
}

func TestRunExplore_UnknownColumn(t *testing.T) {
	tmpDir := t.TempDir()
	csvPath := writeFile(t, tmpDir, "field.csv", genericCSV)

	_, err := runCommand(t, NewExploreCommand(), csvPath, "--y", "Pressure")
	if !errors.Is(err, chart.ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn, got %v", err)
	}
}

func TestResolveAxes(t *testing.T) {
	tbl := &ingest.Table{Columns: []string{"a", "Time", "b", "NDVI"}}

	tests := []struct {
		x, y         string
		wantX, wantY string
	}{
		{"", "", "Time", "NDVI"},
		{"a", "", "a", "NDVI"},
		{"", "b", "Time", "b"},
		{"b", "a", "b", "a"},
	}

	for _, tt := range tests {
		x, y := resolveAxes(tbl, tt.x, tt.y)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("resolveAxes(%q, %q) = %q, %q; want %q, %q", tt.x, tt.y, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestRunLive_FromLog(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeFile(t, tmpDir, "capture.log", serialLog)
	pngPath := filepath.Join(tmpDir, "live.png")

	out, err := runCommand(t, NewLiveCommand(), "--from-log", logPath, "--max-points", "1", "--png", pngPath, "-o", "json")
	if err != nil {
		t.Fatalf("live failed: %v", err)
	}

	report := decodeReport(t, out)
	if report.Summary.Samples != 1 || report.Summary.Evicted != 1 {
		t.Errorf("Expected 1 sample and 1 evicted, got %+v", report.Summary)
	}
	if report.Summary.Skipped != 1 {
		t.Errorf("Expected 1 skipped line, got %d", report.Summary.Skipped)
	}
	if report.Summary.Health != store.HealthStressed {
		t.Errorf("Expected stressed, got %s", report.Summary.Health)
	}
	if report.Label != "[ STRESS ]" {
		t.Errorf("Unexpected label %q", report.Label)
	}
	if report.Snapshot == nil || report.Snapshot.Time != 10 {
		t.Errorf("Expected second sample at t=10, got %+v", report.Snapshot)
	}
	if _, err := os.Stat(pngPath); err != nil {
		t.Errorf("PNG not written: %v", err)
	}
}

func TestRunLive_PortUnavailable(t *testing.T) {
	out, err := runCommand(t, NewLiveCommand(), "--port", filepath.Join(t.TempDir(), "ttyNONE"), "-q")
	if err != nil {
		t.Fatalf("An unavailable port must not fail the run: %v", err)
	}
	if !strings.Contains(out, "0 samples") || !strings.Contains(out, "health unknown") {
		t.Errorf("Unexpected output: %q", out)
	}
	if ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", ExitCode)
	}
}

func TestRunLive_NoLogMatch(t *testing.T) {
	_, err := runCommand(t, NewLiveCommand(), "--from-log", filepath.Join(t.TempDir(), "*.log"))
	if err == nil {
		t.Error("Expected error when no log matches")
	}
}

func TestFinishReport_Webhook(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	csvPath := writeFile(t, tmpDir, "LOG001.CSV", fixedCSV)

	_, err := runCommand(t, NewReplayCommand(), csvPath, "-q", "--webhook-url", server.URL)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 webhook call on alert, got %d", calls.Load())
	}

	calls.Store(0)
	healthy := writeFile(t, tmpDir, "healthy.csv", genericCSV)
	_, err = runCommand(t, NewExploreCommand(), healthy, "-q", "--webhook-url", server.URL)
	if err != nil {
		t.Fatalf("explore failed: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("on_alert webhook must not fire for healthy vines, got %d calls", calls.Load())
	}
}

func TestFinishReport_ResetsExitCode(t *testing.T) {
	ExitCode = 0
	t.Cleanup(func() { ExitCode = 0 })

	cfg := config.DefaultConfig()
	opts := &ReportOptions{Output: "text", Quiet: true}

	alert := output.NewStoreReport("explore", store.New(), "")
	alert.Summary.Health = store.HealthAlert
	if err := finishReport(context.Background(), cfg, opts, alert, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if ExitCode != 1 {
		t.Fatalf("Expected exit code 1 after an alert report, got %d", ExitCode)
	}

	healthy := output.NewStoreReport("explore", store.New(), "")
	healthy.Summary.Health = store.HealthHealthy
	if err := finishReport(context.Background(), cfg, opts, healthy, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if ExitCode != 0 {
		t.Errorf("Expected exit code 0 after a healthy reload, got %d", ExitCode)
	}
}

func TestRunLive_BadMetricsAddr(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := writeFile(t, tmpDir, "capture.log", serialLog)

	_, err := runCommand(t, NewLiveCommand(), "--from-log", logPath, "--metrics-addr", "9100")
	if err == nil || !strings.Contains(err.Error(), "--metrics-addr") {
		t.Errorf("Expected --metrics-addr validation error, got %v", err)
	}
}
