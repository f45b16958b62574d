package policy_test

import (
	"testing"

	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/types"
)

func TestIsDroppable(t *testing.T) {
	tests := []struct {
		kind types.RecordKind
		want bool
	}{
		{types.RecordKindFrame, true},
		{types.RecordKindSummary, false},
		{types.RecordKindError, false},
	}
	for _, tt := range tests {
		if got := policy.IsDroppable(tt.kind); got != tt.want {
			t.Errorf("IsDroppable(%q) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestEstimateSize_GrowsWithDetections(t *testing.T) {
	empty := &types.Record{Kind: types.RecordKindFrame, Frame: &types.FrameResult{}}
	busy := frameRecord(1)
	if policy.EstimateSize(busy) <= policy.EstimateSize(empty) {
		t.Errorf("expected detections to increase size: %d <= %d",
			policy.EstimateSize(busy), policy.EstimateSize(empty))
	}
}

func TestStats_SnapshotIsolation(t *testing.T) {
	pol := policy.NewNoopPolicy()
	if err := pol.Ingest(t.Context(), frameRecord(1)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	snap := pol.Stats()
	snap.DroppedByKind[types.RecordKindFrame] = 100

	if got := pol.Stats().DroppedByKind[types.RecordKindFrame]; got != 1 {
		t.Errorf("mutating a snapshot leaked into policy: got %d", got)
	}
}
