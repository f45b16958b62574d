// Package lode persists recorded stream sessions to a Lode dataset.
//
// Records are JSONL, Hive-partitioned by source/day/session_id/record_kind,
// on the local filesystem or S3.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/types"
)

// DefaultDataset is the Lode dataset ID for recorded sessions.
const DefaultDataset = "ripestream"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"source", "day", "session_id", "record_kind"}

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration. All partition keys are required.
type Config struct {
	// Dataset is the Lode dataset ID (DefaultDataset unless overridden).
	Dataset string
	// Source is the partition key for the video source.
	Source string
	// Day is derived from the session start time (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the session.
	SessionID string
	// Policy is the recording policy name, stored with metrics records.
	Policy string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteRecords writes a batch of session records, preserving order.
	WriteRecords(ctx context.Context, records []*types.Record) error

	// WriteMetrics writes the session's metrics snapshot as a single record.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed policy.Sink.
type Sink struct {
	config Config
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{config: config, client: client}
}

// WriteRecords implements policy.Sink.
func (s *Sink) WriteRecords(ctx context.Context, records []*types.Record) error {
	return s.client.WriteRecords(ctx, records)
}

// WriteMetrics persists the final metrics snapshot for the session.
func (s *Sink) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return s.client.WriteMetrics(ctx, snap, completedAt)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient accepts writes without persisting. Used when no storage path
// is configured and in tests.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]*types.Record
	Metrics []metrics.Snapshot
	Closed  bool
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, records []*types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Batches = append(c.Batches, records)
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Metrics = append(c.Metrics, snap)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
