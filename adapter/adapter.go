// Package adapter defines the notification boundary for completed conversions.
//
// Adapters publish one event per persisted record to a downstream system.
// The persistence worker owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/pressroom/types"
)

// EventTypeConversionCompleted is the only event type published.
const EventTypeConversionCompleted = "conversion_completed"

// ConversionCompletedEvent is the payload published after a record is persisted.
type ConversionCompletedEvent struct {
	ProtocolVersion string `json:"protocol_version"`
	EventType       string `json:"event_type"` // always "conversion_completed"
	JobID           string `json:"job_id"`
	InstanceID      string `json:"instance_id"`
	SourceAddress   string `json:"source_address"`
	BaseFileName    string `json:"base_file_name"`
	InputSizeBytes  int64  `json:"input_size_bytes"`
	OutputSizeBytes int64  `json:"output_size_bytes"`
	InputDigest     string `json:"input_digest,omitempty"`
	StorageBackend  string `json:"storage_backend"`
	Timestamp       string `json:"timestamp"` // RFC 3339
}

// NewConversionCompletedEvent builds the event for a persisted record.
func NewConversionCompletedEvent(rec *types.ConversionRecord, instanceID, storageBackend string) *ConversionCompletedEvent {
	return &ConversionCompletedEvent{
		ProtocolVersion: types.ProtocolVersion,
		EventType:       EventTypeConversionCompleted,
		JobID:           rec.JobID,
		InstanceID:      instanceID,
		SourceAddress:   rec.SourceAddress,
		BaseFileName:    rec.BaseFileName,
		InputSizeBytes:  rec.InputSizeBytes,
		OutputSizeBytes: rec.OutputSizeBytes,
		InputDigest:     rec.InputDigest,
		StorageBackend:  storageBackend,
		Timestamp:       rec.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes conversion events to a downstream system.
// Publish is called from a single goroutine.
type Adapter interface {
	// Publish sends one event downstream.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ConversionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// RetryBaseDelay is the delay before the first retry. It doubles per attempt.
const RetryBaseDelay = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when ctx ends or when permanent reports true for
// the returned error. The name prefixes every returned error.
func Retry(ctx context.Context, name string, retries int, fn func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * RetryBaseDelay
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
