package lode

import (
	"context"

	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/types"
)

// InstrumentedSink wraps a policy.Sink and counts write outcomes.
// Each WriteRecords call increments lode_write_success or
// lode_write_failure on the collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRecords delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteRecords(ctx context.Context, records []*types.Record) error {
	err := s.inner.WriteRecords(ctx, records)
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
