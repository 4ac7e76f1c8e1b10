package persist

import (
	"context"

	"github.com/pithecene-io/pressroom/metrics"
	"github.com/pithecene-io/pressroom/types"
)

// InstrumentedSink wraps a Sink and records store write metrics.
// Each Append increments store_write_success or store_write_failure.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// Append delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) Append(ctx context.Context, rec *types.ConversionRecord) error {
	err := s.inner.Append(ctx, rec)
	if err != nil {
		s.collector.IncStoreWriteFailure()
	} else {
		s.collector.IncStoreWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements Sink.
var _ Sink = (*InstrumentedSink)(nil)
