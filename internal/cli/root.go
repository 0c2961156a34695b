// Package cli provides the command-line interface for VigneLab.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vignelab/vignelab/internal/cli/commands"
)

// GlobalOptions holds the persistent flags of the root command.
type GlobalOptions struct {
	LogLevel string
	NoColor  bool
	EnvFile  string
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors prevents Cobra from printing it.
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "vignelab",
		Short: "Vineyard telemetry monitor and chart toolkit",
		Long: `VigneLab reads telemetry from a vineyard sensor rig and charts it.

  live      Monitor the rig over its serial link (or a recorded log)
  replay    Chart the full history of an SD-card CSV log
  explore   Chart any two columns of a numeric CSV file

Vine health is derived from the latest NDVI value:
  healthy  NDVI > 0.5
  stressed NDVI > 0.2
  alert    otherwise

Settings come from a YAML file (--config), VIGNELAB_* environment
variables and a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "Disable colored log output")
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "Environment file loaded before the config")

	rootCmd.AddCommand(commands.NewLiveCommand())
	rootCmd.AddCommand(commands.NewReplayCommand())
	rootCmd.AddCommand(commands.NewExploreCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}

// setup installs the logger and loads the environment file.
func setup(opts *GlobalOptions) error {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(NewLogger(level, opts.NoColor))

	if opts.EnvFile != "" {
		// Variables already set in the environment win.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", opts.EnvFile, err)
		}
	}
	return nil
}

// NewLogger returns a tint logger writing to stderr, so reports on stdout
// stay machine-readable.
func NewLogger(level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (use debug, info, warn or error)", s)
	}
}
