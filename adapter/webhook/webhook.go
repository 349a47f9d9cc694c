// Package webhook posts submission events as JSON to an HTTP endpoint.
//
// Transient failures (5xx, network) are retried with exponential backoff.
// A 4xx response fails immediately.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pithecene-io/crashreporter/adapter"
	"github.com/pithecene-io/crashreporter/iox"
	"github.com/pithecene-io/crashreporter/transport"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// EventHeader carries the event type so receivers can route without
// decoding the body.
const EventHeader = "X-Crashreporter-Event"

// Config configures the webhook notifier.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retries after the first attempt.
	Retries int
}

// Adapter publishes submission events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook notifier. Returns an error if the URL is empty or
// retries is negative.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish posts the event.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SubmissionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	err = adapter.Retry(ctx, attempts, func(ctx context.Context) error {
		return a.post(ctx, event.EventType, body)
	}, isClientError)
	switch {
	case err == nil:
		return nil
	case isClientError(err):
		return fmt.Errorf("webhook: non-retriable error: %w", err)
	case ctx.Err() != nil:
		return fmt.Errorf("webhook: context canceled: %w", err)
	default:
		return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, err)
	}
}

func isClientError(err error) bool {
	var statusErr *transport.StatusError
	return errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500
}

// post performs one POST and returns nil on 2xx.
func (a *Adapter) post(ctx context.Context, eventType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", transport.ErrNetwork, err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &transport.StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
