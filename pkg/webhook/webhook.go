// Package webhook posts monitoring reports to HTTP endpoints, typically
// to raise a vine-health alert.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vignelab/vignelab/pkg/config"
	"github.com/vignelab/vignelab/pkg/output"
	"github.com/vignelab/vignelab/pkg/store"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// EventHealth is the event name of every payload.
const EventHealth = "vine.health"

// Payload is the JSON body posted to a webhook.
type Payload struct {
	Event  string         `json:"event"`
	Alert  bool           `json:"alert"`
	Health store.Health   `json:"health,omitempty"`
	Label  string         `json:"label,omitempty"`
	SentAt time.Time      `json:"sent_at"`
	Report *output.Report `json:"report"`
}

// NewPayload wraps a report.
func NewPayload(report *output.Report) *Payload {
	return &Payload{
		Event:  EventHealth,
		Alert:  report.IsAlert(),
		Health: report.Summary.Health,
		Label:  report.Label,
		SentAt: time.Now().UTC(),
		Report: report,
	}
}

// Client sends reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new webhook client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts a report to one endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	payload, err := json.Marshal(NewPayload(report))
	if err != nil {
		return fail(fmt.Errorf("failed to marshal report: %w", err))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vignelab-webhook")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1024*1024)) // Limit to 1MB
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}

// ShouldFire reports whether a webhook with the given trigger fires for
// a report. An empty trigger behaves like on_alert.
func ShouldFire(trigger config.WebhookTrigger, alert bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return alert
	}
}

// Notify sends the report to every hook whose trigger matches. Failures
// are logged and returned per hook; they never abort the run.
func (c *Client) Notify(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) map[string]*Response {
	results := make(map[string]*Response)
	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report.IsAlert()) {
			continue
		}

		resp := c.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		results[name] = resp

		if resp.Success() {
			c.logger.Info("webhook sent", "webhook", name, "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			c.logger.Warn("webhook failed", "webhook", name, "error", resp.Error)
		}
	}
	return results
}
