// Package transport posts crash reports to a collector as gzip-compressed
// multipart/form-data.
//
// Each Send is a single attempt. Retrying is the caller's concern.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pithecene-io/crashreporter/iox"
	"github.com/pithecene-io/crashreporter/log"
	"github.com/pithecene-io/crashreporter/metrics"
	"github.com/pithecene-io/crashreporter/report"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxResponseBytes bounds how much of a response body is read.
const DefaultMaxResponseBytes = 64 << 10

// ErrNetwork classifies failures where no HTTP response was received.
var ErrNetwork = errors.New("transport: network error")

// StatusError is returned for non-2xx responses. The Response is still
// returned alongside it.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Config configures a Client.
type Config struct {
	// URL is the collector submit endpoint (required).
	URL string
	// Headers are added to every request.
	Headers map[string]string
	// Timeout is the whole-request timeout (default 30s).
	Timeout time.Duration
	// UserAgent is sent when non-empty.
	UserAgent string
	// MaxResponseBytes bounds the response body read (default 64 KiB).
	MaxResponseBytes int64
}

// Response is the collector's answer to a submission.
type Response struct {
	StatusCode int
	Body       string
	// Truncated is set when the body was cut at MaxResponseBytes.
	Truncated bool
}

// CrashID parses the crash identifier out of the response. A truncated
// body is only searched up to its last complete line.
func (r *Response) CrashID() (string, bool) {
	if r == nil {
		return "", false
	}
	body := r.Body
	if r.Truncated {
		i := strings.LastIndexByte(body, '\n')
		body = body[:i+1]
	}
	return ParseCrashID(r.StatusCode, body)
}

// Client submits reports to one collector.
type Client struct {
	config  Config
	client  *http.Client
	logger  *log.Logger
	metrics *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the HTTP client. Config.Timeout is not applied
// to a client passed this way.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a client. Returns an error if the URL is empty.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("transport: collector URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	c := &Client{
		config: cfg,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: cfg.Timeout}
	}
	return c, nil
}

// URL returns the collector endpoint.
func (c *Client) URL() string { return c.config.URL }

// Send encodes rep and posts it. A non-2xx status returns both the
// Response and a *StatusError. A failure to reach the collector returns
// an error matching ErrNetwork and no Response.
func (c *Client) Send(ctx context.Context, rep *report.Report) (*Response, error) {
	body, contentType, err := c.compress(rep)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Encoding", "gzip")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer iox.DrainClose(resp.Body)

	data, err := iox.ReadAtMost(resp.Body, c.config.MaxResponseBytes+1)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}
	truncated := int64(len(data)) > c.config.MaxResponseBytes
	if truncated {
		data = data[:c.config.MaxResponseBytes]
	}

	out := &Response{StatusCode: resp.StatusCode, Body: string(data), Truncated: truncated}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &StatusError{Code: resp.StatusCode}
	}
	return out, nil
}

// compress encodes rep into a gzip-compressed multipart body.
func (c *Client) compress(rep *report.Report) ([]byte, string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	contentType, err := encode(gz, rep,
		func(report.Attachment) { c.metrics.IncAttachmentSent() },
		func(a report.Attachment, err error) {
			c.metrics.IncAttachmentSkipped()
			c.logger.Warn("attachment skipped", map[string]any{
				"part":  a.Name,
				"path":  a.Path,
				"error": err.Error(),
			})
		})
	if err != nil {
		_ = gz.Close()
		return nil, "", err
	}
	if err := gz.Close(); err != nil {
		return nil, "", fmt.Errorf("transport: gzip: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
