// Package config provides configuration loading and validation for
// VigneLab.
package config

import (
	"time"

	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/serialport"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Serial       SerialConfig    `yaml:"serial"`
	PollInterval time.Duration   `yaml:"poll_interval"`
	History      HistoryConfig   `yaml:"history"`
	Protocol     ProtocolConfig  `yaml:"protocol"`
	Chart        ChartConfig     `yaml:"chart"`
	Metrics      MetricsConfig   `yaml:"metrics"`
	Webhooks     []WebhookConfig `yaml:"webhooks,omitempty"`
}

// SerialConfig selects the port the sensor rig is attached to.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0 or COM3.
	Port string `yaml:"port"`

	// Baud is the line speed. The firmware uses 115200.
	Baud int `yaml:"baud"`

	// ReadTimeout bounds every read so the polling loop never blocks.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// SourceConfig converts the serial section for serialport.Open.
func (s SerialConfig) SourceConfig() serialport.Config {
	return serialport.Config{
		Port:        s.Port,
		Baud:        s.Baud,
		ReadTimeout: s.ReadTimeout,
	}
}

// HistoryConfig bounds the live store.
type HistoryConfig struct {
	// MaxPoints is the number of samples kept. Zero keeps everything.
	MaxPoints int `yaml:"max_points"`

	// TimeStep is the number of seconds between two firmware cycles.
	TimeStep float64 `yaml:"time_step"`
}

// ProtocolConfig holds the keywords of the serial line protocol.
type ProtocolConfig struct {
	HealthKeyword   string `yaml:"health_keyword"`
	AccelKeyword    string `yaml:"accel_keyword"`
	WeatherKeyword  string `yaml:"weather_keyword"`
	TemperatureUnit string `yaml:"temperature_unit"`
	HumidityUnit    string `yaml:"humidity_unit"`
	StateArrow      string `yaml:"state_arrow"`
}

// Grammar returns the parser grammar for this protocol.
func (p ProtocolConfig) Grammar() parser.Grammar {
	return parser.Grammar{
		HealthKeyword:   p.HealthKeyword,
		AccelKeyword:    p.AccelKeyword,
		WeatherKeyword:  p.WeatherKeyword,
		TemperatureUnit: p.TemperatureUnit,
		HumidityUnit:    p.HumidityUnit,
		StateArrow:      p.StateArrow,
	}
}

// ChartConfig sets the default chart mode and image size.
type ChartConfig struct {
	Mode   string `yaml:"mode"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for /metrics, e.g. ":9100". Empty disables it.
	Listen string `yaml:"listen,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnAlert fires only when the vine health is alert (default).
	WebhookTriggerOnAlert WebhookTrigger = "on_alert"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_alert" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
