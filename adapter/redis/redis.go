// Package redis publishes submission events to Redis.
//
// Every event is PUBLISHed as JSON on a channel. When a stream is
// configured the event is also appended with XADD so consumers that were
// offline can catch up.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/crashreporter/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "crashreporter:crash_submitted"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultStreamMaxLen caps the stream when MaxLen is unset.
const DefaultStreamMaxLen = 10000

// Config configures the Redis notifier.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name.
	Channel string
	// Stream, when set, also receives each event via XADD.
	Stream string
	// MaxLen approximately caps the stream length.
	MaxLen int64
	// Timeout bounds each attempt (default 5s).
	Timeout time.Duration
	// Retries is the number of retries after the first attempt.
	Retries int
}

// Adapter publishes submission events to Redis.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis notifier. Returns an error if the URL is empty or
// invalid, or retries is negative.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = DefaultStreamMaxLen
	}
	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the event, retrying with exponential backoff.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SubmissionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	err = adapter.Retry(ctx, attempts, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.send(attemptCtx, event, body)
	}, nil)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("redis: context canceled: %w", err)
	default:
		return fmt.Errorf("redis: failed after %d attempts: %w", attempts, err)
	}
}

// send publishes once, and appends to the stream when one is configured.
func (a *Adapter) send(ctx context.Context, event *adapter.SubmissionEvent, body []byte) error {
	if a.config.Stream == "" {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}

	pipe := a.client.TxPipeline()
	pipe.Publish(ctx, a.config.Channel, body)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: a.config.Stream,
		MaxLen: a.config.MaxLen,
		Approx: true,
		Values: map[string]any{
			"event_type": event.EventType,
			"crash_id":   event.CrashID,
			"payload":    string(body),
		},
	})
	_, err := pipe.Exec(ctx)
	return err
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
