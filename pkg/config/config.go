package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vignelab/vignelab/pkg/chart"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadDefault returns the defaults with environment overrides applied.
// It is used when no configuration file is given.
func LoadDefault(_ context.Context) (*Config, error) {
	return finish(DefaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills in defaults for
// zero durations.
func Validate(cfg *Config) error {
	if err := validateSerial(&cfg.Serial); err != nil {
		return fmt.Errorf("serial: %w", err)
	}

	if cfg.PollInterval < 0 {
		return errors.New("poll_interval: must not be negative")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}

	if cfg.History.MaxPoints < 0 {
		return errors.New("history.max_points: must be >= 0 (0 keeps every sample)")
	}
	if cfg.History.TimeStep <= 0 {
		return errors.New("history.time_step: must be > 0")
	}

	if err := validateProtocol(&cfg.Protocol); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}

	if err := validateChart(&cfg.Chart); err != nil {
		return fmt.Errorf("chart: %w", err)
	}

	if err := ValidateListenAddr(cfg.Metrics.Listen); err != nil {
		return fmt.Errorf("metrics.listen: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

// ValidateListenAddr checks a host:port listen address. Empty is allowed
// and disables the listener.
func ValidateListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	_, _, err := net.SplitHostPort(addr)
	return err
}

func validateSerial(s *SerialConfig) error {
	if s.Baud <= 0 {
		return fmt.Errorf("baud must be > 0, got %d", s.Baud)
	}
	if s.ReadTimeout < 0 {
		return errors.New("read_timeout must not be negative")
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultConfig().Serial.ReadTimeout
	}
	return nil
}

func validateProtocol(p *ProtocolConfig) error {
	required := []struct {
		name, value string
	}{
		{"health_keyword", p.HealthKeyword},
		{"accel_keyword", p.AccelKeyword},
		{"weather_keyword", p.WeatherKeyword},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if p.HealthKeyword == p.AccelKeyword || p.HealthKeyword == p.WeatherKeyword || p.AccelKeyword == p.WeatherKeyword {
		return errors.New("health, accel and weather keywords must differ")
	}
	return nil
}

func validateChart(c *ChartConfig) error {
	mode, err := chart.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = string(mode)

	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("width and height must not be negative, got %dx%d", c.Width, c.Height)
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnAlert
	case WebhookTriggerOnAlert, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_alert, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	switch {
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		return os.Getenv(s[2 : len(s)-1])
	case strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${"):
		return os.Getenv(s[1:])
	default:
		return s
	}
}
