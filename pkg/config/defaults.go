package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vignelab/vignelab/pkg/chart"
	"github.com/vignelab/vignelab/pkg/monitor"
	"github.com/vignelab/vignelab/pkg/output"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/serialport"
	"github.com/vignelab/vignelab/pkg/store"
)

// Default values for configuration.
const (
	DefaultSerialPort     = "/dev/ttyUSB0"
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvSerialPort  = "VIGNELAB_SERIAL_PORT"
	EnvSerialBaud  = "VIGNELAB_SERIAL_BAUD"
	EnvMetricsAddr = "VIGNELAB_METRICS_ADDR"
)

// DefaultConfig returns a configuration matching the rig firmware.
func DefaultConfig() *Config {
	g := parser.DefaultGrammar()
	return &Config{
		Serial: SerialConfig{
			Port:        DefaultSerialPort,
			Baud:        serialport.DefaultBaud,
			ReadTimeout: serialport.DefaultReadTimeout,
		},
		PollInterval: monitor.DefaultPollInterval,
		History: HistoryConfig{
			MaxPoints: store.DefaultMaxPoints,
			TimeStep:  store.DefaultTimeStep,
		},
		Protocol: ProtocolConfig{
			HealthKeyword:   g.HealthKeyword,
			AccelKeyword:    g.AccelKeyword,
			WeatherKeyword:  g.WeatherKeyword,
			TemperatureUnit: g.TemperatureUnit,
			HumidityUnit:    g.HumidityUnit,
			StateArrow:      g.StateArrow,
		},
		Chart: ChartConfig{
			Mode:   string(chart.ModeNDVI),
			Width:  output.DefaultWidth,
			Height: output.DefaultHeight,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() error {
	if port := os.Getenv(EnvSerialPort); port != "" {
		c.Serial.Port = port
	}

	if baud := os.Getenv(EnvSerialBaud); baud != "" {
		n, err := strconv.Atoi(baud)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSerialBaud, err)
		}
		c.Serial.Baud = n
	}

	if addr := os.Getenv(EnvMetricsAddr); addr != "" {
		c.Metrics.Listen = addr
	}
	return nil
}
