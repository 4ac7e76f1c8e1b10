// Package persist owns the asynchronous record persistence pipeline.
//
// Connection handlers enqueue one ConversionRecord per completed job; a single
// worker goroutine drains the queue into a Sink. Handlers never wait on
// storage latency, only on queue capacity.
package persist

import (
	"context"
	"sync"

	"github.com/pithecene-io/pressroom/types"
)

// Sink abstracts the record store.
// Implementations may write to a dataset, a database, or stub for testing.
//
// Append is only ever called from the worker goroutine, so implementations
// need not be safe for concurrent use unless they are shared elsewhere.
type Sink interface {
	// Append persists one record.
	// Returns error on failure; the worker logs it and moves on.
	Append(ctx context.Context, rec *types.ConversionRecord) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that keeps records in memory.
type StubSink struct {
	mu sync.Mutex

	// Records stores all appended records in order.
	Records []*types.ConversionRecord
	// Appends is the number of Append calls, including failed ones.
	Appends int64
	// Closed indicates whether Close was called.
	Closed bool

	// ErrorOnAppend, if non-nil, is returned by Append.
	ErrorOnAppend error
	// FailFor, if non-nil, is consulted per record; a non-nil result is
	// returned instead of storing the record.
	FailFor func(rec *types.ConversionRecord) error
	// Block, if non-nil, makes Append wait until it is closed or ctx ends.
	Block chan struct{}
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{Records: make([]*types.ConversionRecord, 0)}
}

// Append records rec without persisting.
func (s *StubSink) Append(ctx context.Context, rec *types.ConversionRecord) error {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Appends++
	if s.ErrorOnAppend != nil {
		return s.ErrorOnAppend
	}
	if s.FailFor != nil {
		if err := s.FailFor(rec); err != nil {
			return err
		}
	}
	s.Records = append(s.Records, rec)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Snapshot returns a copy of the stored records.
func (s *StubSink) Snapshot() []*types.ConversionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.ConversionRecord, len(s.Records))
	copy(out, s.Records)
	return out
}

// Verify StubSink implements Sink.
var _ Sink = (*StubSink)(nil)
