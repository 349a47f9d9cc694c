// Package adapter defines the notification boundary for submitted crash
// reports.
//
// Notifiers tell downstream systems that a report was sent. A failed
// notification never changes the outcome of the submission itself.
package adapter

import (
	"context"
	"time"
)

// EventSubmitted is the event type of every SubmissionEvent.
const EventSubmitted = "crash_submitted"

// SubmissionEvent is the payload published after a submission attempt.
type SubmissionEvent struct {
	EventType      string `json:"event_type"` // always "crash_submitted"
	CrashID        string `json:"crash_id,omitempty"`
	CrashType      string `json:"crash_type"`
	ProductName    string `json:"product_name"`
	ProductID      string `json:"product_id"`
	Version        string `json:"version"`
	ReleaseChannel string `json:"release_channel"`
	Submitted      bool   `json:"submitted"`
	Timestamp      string `json:"timestamp"` // RFC 3339
}

// Adapter publishes submission events to a downstream system.
type Adapter interface {
	// Publish sends an event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SubmissionEvent) error

	// Close releases adapter resources.
	Close() error
}

// backoffBase is the delay before the first retry. It doubles per retry.
const backoffBase = 500 * time.Millisecond

// Backoff returns the delay before attempt i (0-based). The first attempt
// is not delayed.
func Backoff(i int) time.Duration {
	if i <= 0 {
		return 0
	}
	return time.Duration(1<<uint(i-1)) * backoffBase
}

// Retry calls fn up to attempts times, sleeping Backoff(i) between calls.
// It stops early when fn succeeds, when permanent reports true for the
// returned error, or when ctx is done. It returns the last error.
func Retry(ctx context.Context, attempts int, fn func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d := Backoff(i); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
