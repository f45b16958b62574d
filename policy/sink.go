package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/ripestream/types"
)

// Sink abstracts persistence for policies.
// Implementations may write to storage, forward elsewhere, or stub for tests.
//
// WriteRecords is batch-oriented: strict writes batches of one, buffered
// policies write whole buffers.
type Sink interface {
	// WriteRecords persists a batch of records, preserving order.
	// Returns error on failure; the caller decides whether to retry.
	WriteRecords(ctx context.Context, records []*types.Record) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// RecordsWritten is the total count of records written.
	RecordsWritten int64
	// Batches is the number of WriteRecords calls that succeeded.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool
	// Written stores all written records in write order.
	Written []*types.Record
	// BatchSizes records the size of every successful batch.
	BatchSizes []int

	// ErrorOnWrite, if non-nil, is returned by WriteRecords.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRecords records the batch without persisting.
func (s *StubSink) WriteRecords(_ context.Context, records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.RecordsWritten += int64(len(records))
	s.Written = append(s.Written, records...)
	s.BatchSizes = append(s.BatchSizes, len(records))
	return nil
}

// SetError changes the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		RecordsWritten: s.RecordsWritten,
		Batches:        s.Batches,
		Closed:         s.Closed,
	}
}

// Records returns a copy of the written records.
func (s *StubSink) Records() []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Record(nil), s.Written...)
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	RecordsWritten int64
	Batches        int64
	Closed         bool
}
