// Package clay submits enrichment jobs to Clay over one of two transports:
// a webhook-style POST to a configured URL, or direct row creation against
// the Clay API. The webhook transport takes precedence when both are
// configured.
package clay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	apperrors "enrich-relay/internal/common/errors"
	"enrich-relay/internal/common/logging"
)

// ErrNotConfigured is returned when neither transport is configured. The
// dispatcher surfaces this to the user by editing the placeholder; it is
// never retried.
var ErrNotConfigured = apperrors.ConfigError(
	"Clay configuration missing: set CLAY_WEBHOOK_URL or CLAY_API_BASE+CLAY_API_KEY")

// Job carries everything the enrichment service needs to process a profile
// and call back with the result.
type Job struct {
	ProfileURL    string
	Channel       string
	MessageTS     string
	CallbackURL   string
	CallbackToken string
}

// Submitter is the outbound enrichment capability consumed by the dispatcher.
type Submitter interface {
	// Enabled reports whether a transport is configured.
	Enabled() bool
	// Submit dispatches the job and returns the job identifier, which may be
	// empty when the transport does not issue one.
	Submit(ctx context.Context, job Job) (string, error)
}

// Config holds Clay transport settings.
type Config struct {
	WebhookURL string
	APIBase    string
	APIKey     string
	Timeout    time.Duration
}

// Client submits jobs to Clay. External calls run behind a circuit breaker so
// a misbehaving endpoint fails fast instead of tying up handlers.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// New creates a Client. A zero Timeout defaults to 30 seconds.
func New(cfg Config, logger logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "clay",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Enabled reports whether a transport is configured.
func (c *Client) Enabled() bool {
	return c.webhookMode() || c.apiMode()
}

func (c *Client) webhookMode() bool {
	return c.cfg.WebhookURL != ""
}

func (c *Client) apiMode() bool {
	return c.cfg.APIBase != "" && c.cfg.APIKey != ""
}

// Submit dispatches the job over the configured transport and returns the
// job identifier from the response, if the service issued one.
func (c *Client) Submit(ctx context.Context, job Job) (string, error) {
	switch {
	case c.webhookMode():
		return c.submitWebhook(ctx, job)
	case c.apiMode():
		return c.submitRow(ctx, job)
	default:
		return "", ErrNotConfigured
	}
}

// submitWebhook posts the flat payload to the configured webhook URL. The
// bearer header is attached only when a key is configured.
func (c *Client) submitWebhook(ctx context.Context, job Job) (string, error) {
	payload := map[string]interface{}{
		"linkedin_url":     job.ProfileURL,
		"slack_channel":    job.Channel,
		"slack_message_ts": job.MessageTS,
		"callback_url":     job.CallbackURL,
		"callback_token":   job.CallbackToken,
	}
	return c.post(ctx, c.cfg.WebhookURL, payload, c.cfg.APIKey)
}

// submitRow creates a row directly against the Clay API.
func (c *Client) submitRow(ctx context.Context, job Job) (string, error) {
	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"linkedin_url":     job.ProfileURL,
			"slack_channel":    job.Channel,
			"slack_message_ts": job.MessageTS,
			"callback_url":     job.CallbackURL,
			"callback_token":   job.CallbackToken,
		},
	}
	return c.post(ctx, strings.TrimRight(c.cfg.APIBase, "/")+"/rows", payload, c.cfg.APIKey)
}

func (c *Client) post(ctx context.Context, url string, payload interface{}, bearer string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.InternalError("failed to encode submission payload", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", apperrors.InternalError("failed to build submission request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return "", apperrors.TransportError("enrichment submission failed", err).
				WithContext("url", url)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", apperrors.TransportError(
				fmt.Sprintf("enrichment submission returned status %d", resp.StatusCode), nil).
				WithContext("url", url).
				WithContext("body", string(respBody))
		}

		return extractJobID(respBody), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// extractJobID pulls the job identifier out of a submission response,
// accepting the id/row_id/rowId field names and both string and numeric
// encodings. A malformed or id-less response yields an empty id; the
// dispatcher falls back to a synthesized key in that case.
func extractJobID(body []byte) string {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}

	for _, field := range []string{"id", "row_id", "rowId"} {
		switch v := data[field].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
