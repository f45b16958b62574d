package lode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/types"
)

func TestSink_DelegatesToClient(t *testing.T) {
	client := NewStubClient()
	sink := NewSink(testConfig("sess-1"), client)

	recs := sessionRecords("sess-1")
	if err := sink.WriteRecords(t.Context(), recs); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
	if err := sink.WriteMetrics(t.Context(), metrics.Snapshot{FramesSent: 3}, time.Now()); err != nil {
		t.Fatalf("WriteMetrics failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(client.Batches) != 1 || len(client.Batches[0]) != len(recs) {
		t.Errorf("Batches = %v, want one batch of %d", len(client.Batches), len(recs))
	}
	if len(client.Metrics) != 1 || client.Metrics[0].FramesSent != 3 {
		t.Errorf("Metrics = %+v", client.Metrics)
	}
	if !client.Closed {
		t.Error("client not closed")
	}
}

func TestSink_WithStrictPolicy(t *testing.T) {
	client := NewStubClient()
	pol := policy.NewStrictPolicy(NewSink(testConfig("sess-1"), client))

	for _, rec := range sessionRecords("sess-1") {
		if err := pol.Ingest(t.Context(), rec); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var total int
	for _, b := range client.Batches {
		total += len(b)
	}
	if total != 4 {
		t.Errorf("records written = %d, want 4", total)
	}
}

type failingSink struct{ err error }

func (s *failingSink) WriteRecords(context.Context, []*types.Record) error { return s.err }
func (s *failingSink) Close() error                                        { return nil }

func TestInstrumentedSink_CountsOutcomesFailingSink(t *testing.T) {
	collector := metrics.NewCollector("strict", "fs", "sess-1", "orchard-a")

	ok := NewInstrumentedSink(NewSink(testConfig("sess-1"), NewStubClient()), collector)
	if err := ok.WriteRecords(t.Context(), sessionRecords("sess-1")); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	boom := errors.New("boom")
	bad := NewInstrumentedSink(&failingSink{err: boom}, collector)
	if err := bad.WriteRecords(t.Context(), sessionRecords("sess-1")); !errors.Is(err, boom) {
		t.Fatalf("WriteRecords error = %v, want boom", err)
	}

	snap := collector.Snapshot()
	if snap.LodeWriteSuccess != 1 || snap.LodeWriteFailure != 1 {
		t.Errorf("success/failure = %d/%d, want 1/1", snap.LodeWriteSuccess, snap.LodeWriteFailure)
	}
}

func TestInstrumentedSink_NilCollector(t *testing.T) {
	s := NewInstrumentedSink(NewSink(testConfig("sess-1"), NewStubClient()), nil)
	if err := s.WriteRecords(t.Context(), sessionRecords("sess-1")); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.path)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q; want %q, %q", tt.path, b, p, tt.bucket, tt.prefix)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
	cfg.Bucket = "b"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestS3Config_URI(t *testing.T) {
	tests := []struct {
		cfg  S3Config
		key  string
		want string
	}{
		{S3Config{Bucket: "b"}, "datasets/x", "s3://b/datasets/x"},
		{S3Config{Bucket: "b", Prefix: "/orchard/"}, "datasets/x", "s3://b/orchard/datasets/x"},
		{S3Config{Bucket: "b", Prefix: "a/b"}, "", "s3://b/a/b"},
	}
	for _, tt := range tests {
		if got := tt.cfg.URI(tt.key); got != tt.want {
			t.Errorf("URI(%q) with %+v = %q, want %q", tt.key, tt.cfg, got, tt.want)
		}
	}
}

func TestSessionPartition(t *testing.T) {
	got := SessionPartition("ripestream", "row-7", "2026-06-14", "sess-1")
	want := "datasets/ripestream/partitions/source=row-7/day=2026-06-14/session_id=sess-1"
	if got != want {
		t.Errorf("SessionPartition = %q, want %q", got, want)
	}
}
