package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a VigneLab configuration file without opening the serial port.

Checks:
  - YAML syntax
  - Baud rate, poll interval and history bounds
  - Protocol keywords (required and distinct)
  - Chart mode and image size
  - Metrics listen address
  - Webhook URLs and triggers`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Serial:   %s @ %d baud (timeout %s)\n", cfg.Serial.Port, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	fmt.Fprintf(w, "  Polling:  every %s\n", cfg.PollInterval)
	if cfg.History.MaxPoints == 0 {
		fmt.Fprintf(w, "  History:  unbounded, %gs step\n", cfg.History.TimeStep)
	} else {
		fmt.Fprintf(w, "  History:  %d points, %gs step\n", cfg.History.MaxPoints, cfg.History.TimeStep)
	}
	fmt.Fprintf(w, "  Chart:    %s (%dx%d)\n", cfg.Chart.Mode, cfg.Chart.Width, cfg.Chart.Height)
	if cfg.Metrics.Listen != "" {
		fmt.Fprintf(w, "  Metrics:  %s\n", cfg.Metrics.Listen)
	}

	fmt.Fprintf(w, "\nProtocol:\n")
	fmt.Fprintf(w, "  health:  %q\n", cfg.Protocol.HealthKeyword)
	fmt.Fprintf(w, "  accel:   %q\n", cfg.Protocol.AccelKeyword)
	fmt.Fprintf(w, "  weather: %q (%q, %q)\n", cfg.Protocol.WeatherKeyword, cfg.Protocol.TemperatureUnit, cfg.Protocol.HumidityUnit)

	if len(cfg.Webhooks) > 0 {
		fmt.Fprintf(w, "\nWebhooks:\n")
		for i, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, triggerName(wh.Trigger), name)
		}
	}

	return nil
}
