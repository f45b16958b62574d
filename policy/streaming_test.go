package policy_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/types"
)

func mustNewStreamingPolicy(t *testing.T, sink policy.Sink, config policy.StreamingConfig) *policy.StreamingPolicy {
	t.Helper()
	pol, err := policy.NewStreamingPolicy(sink, config)
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	t.Cleanup(func() { _ = pol.Close() })
	return pol
}

func TestStreamingPolicy_InvalidConfig(t *testing.T) {
	_, err := policy.NewStreamingPolicy(policy.NewStubSink(), policy.StreamingConfig{})
	if !errors.Is(err, policy.ErrStreamingInvalidConfig) {
		t.Errorf("expected ErrStreamingInvalidConfig, got %v", err)
	}
}

func TestStreamingPolicy_CountTrigger(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 3})

	for i := int64(1); i <= 2; i++ {
		if err := pol.Ingest(t.Context(), frameRecord(i)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if sink.Stats().RecordsWritten != 0 {
		t.Fatal("flushed before count threshold")
	}

	if err := pol.Ingest(t.Context(), frameRecord(3)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := sink.Stats(); got.RecordsWritten != 3 || got.Batches != 1 {
		t.Errorf("expected one batch of 3, got %+v", got)
	}
	if pol.FlushTriggerStats()[policy.FlushTriggerCount] != 1 {
		t.Errorf("expected one count trigger, got %v", pol.FlushTriggerStats())
	}
}

func TestStreamingPolicy_IntervalTrigger(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushInterval: 20 * time.Millisecond})

	_ = pol.Ingest(t.Context(), summaryRecord(1))

	deadline := time.Now().Add(2 * time.Second)
	for sink.Stats().RecordsWritten == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.Stats().RecordsWritten != 1 {
		t.Fatal("interval flush did not happen")
	}
	if pol.FlushTriggerStats()[policy.FlushTriggerInterval] == 0 {
		t.Error("expected interval trigger count")
	}
}

func TestStreamingPolicy_NeverDrops(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 1000})

	for i := int64(1); i <= 50; i++ {
		_ = pol.Ingest(t.Context(), frameRecord(i))
	}
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stats := pol.Stats()
	if stats.RecordsDropped != 0 {
		t.Errorf("streaming policy dropped %d records", stats.RecordsDropped)
	}
	if stats.RecordsPersisted != 50 {
		t.Errorf("RecordsPersisted = %d, want 50", stats.RecordsPersisted)
	}
	if pol.FlushTriggerStats()[policy.FlushTriggerTermination] != 1 {
		t.Errorf("expected termination trigger, got %v", pol.FlushTriggerStats())
	}
}

func TestStreamingPolicy_FailureRestoresOrder(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 2})

	sink.SetError(errors.New("transient"))
	_ = pol.Ingest(t.Context(), frameRecord(1))
	if err := pol.Ingest(t.Context(), frameRecord(2)); err == nil {
		t.Fatal("expected count-triggered flush to fail")
	}
	if pol.Stats().Errors != 1 {
		t.Errorf("expected Errors=1, got %d", pol.Stats().Errors)
	}

	sink.SetError(nil)
	_ = pol.Ingest(t.Context(), summaryRecord(3))

	written := sink.Records()
	if len(written) != 3 {
		t.Fatalf("expected 3 records after recovery, got %d", len(written))
	}
	for i, rec := range written {
		if rec.Seq != int64(i+1) {
			t.Errorf("write %d: seq = %d", i, rec.Seq)
		}
	}
	if written[2].Kind != types.RecordKindSummary {
		t.Errorf("last record kind = %q", written[2].Kind)
	}
}

func TestStreamingPolicy_CloseFlushesAndClosesSink(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{
		FlushCount:    100,
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStreamingPolicy: %v", err)
	}
	_ = pol.Ingest(t.Context(), errorRecord(1))

	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := sink.Stats(); got.RecordsWritten != 1 || !got.Closed {
		t.Errorf("expected flush then close, got %+v", got)
	}
	// Second Close must not panic on the stop channel.
	_ = pol.Close()
}

func TestStreamingPolicy_FlushOnSummary(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100, FlushOnSummary: true})

	_ = pol.Ingest(t.Context(), frameRecord(1))
	_ = pol.Ingest(t.Context(), errorRecord(2))
	if sink.Stats().RecordsWritten != 0 {
		t.Fatal("flushed before summary")
	}

	if err := pol.Ingest(t.Context(), summaryRecord(3)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := sink.Stats(); got.RecordsWritten != 3 || got.Batches != 1 {
		t.Errorf("expected one batch of 3, got %+v", got)
	}
	if pol.FlushTriggerStats()[policy.FlushTriggerSummary] != 1 {
		t.Errorf("expected one summary trigger, got %v", pol.FlushTriggerStats())
	}
}

func TestStreamingPolicy_SummaryWithoutOptionWaits(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	_ = pol.Ingest(t.Context(), summaryRecord(1))
	if sink.Stats().RecordsWritten != 0 {
		t.Error("summary flushed without FlushOnSummary")
	}
}
