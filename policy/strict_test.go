package policy_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/types"
)

func TestStrictPolicy_ImmediateWrite(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Ingest(t.Context(), frameRecord(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sinkStats := sink.Stats()
	if sinkStats.RecordsWritten != 1 {
		t.Errorf("expected 1 record written immediately, got %d", sinkStats.RecordsWritten)
	}
	if sinkStats.Batches != 1 {
		t.Errorf("expected 1 batch, got %d", sinkStats.Batches)
	}

	stats := pol.Stats()
	if stats.TotalRecords != 1 || stats.RecordsPersisted != 1 || stats.RecordsDropped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStrictPolicy_NoDropsPreservesOrder(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	records := []*types.Record{frameRecord(1), errorRecord(2), frameRecord(3), summaryRecord(4)}
	for _, rec := range records {
		if err := pol.Ingest(t.Context(), rec); err != nil {
			t.Fatalf("unexpected error for seq %d: %v", rec.Seq, err)
		}
	}

	stats := pol.Stats()
	if stats.RecordsDropped != 0 {
		t.Errorf("strict policy should never drop, got %d drops", stats.RecordsDropped)
	}
	if stats.RecordsPersisted != int64(len(records)) {
		t.Errorf("expected %d persisted, got %d", len(records), stats.RecordsPersisted)
	}

	written := sink.Records()
	for i, rec := range written {
		if rec.Seq != int64(i+1) {
			t.Errorf("write %d: seq = %d, want %d", i, rec.Seq, i+1)
		}
	}
}

func TestStrictPolicy_SinkError(t *testing.T) {
	sink := policy.NewStubSink()
	sinkErr := errors.New("sink unavailable")
	sink.SetError(sinkErr)
	pol := policy.NewStrictPolicy(sink)

	err := pol.Ingest(t.Context(), summaryRecord(1))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}

	stats := pol.Stats()
	if stats.Errors != 1 {
		t.Errorf("expected Errors=1, got %d", stats.Errors)
	}
	if stats.RecordsPersisted != 0 {
		t.Errorf("expected RecordsPersisted=0, got %d", stats.RecordsPersisted)
	}
}

func TestStrictPolicy_FlushAndClose(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("expected FlushCount=1, got %d", pol.Stats().FlushCount)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("expected sink to be closed")
	}
}
