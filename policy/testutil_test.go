package policy_test

import (
	"github.com/pithecene-io/ripestream/types"
)

func frameRecord(seq int64) *types.Record {
	return &types.Record{
		Kind:      types.RecordKindFrame,
		SessionID: "sess-1",
		Seq:       seq,
		Frame: &types.FrameResult{
			FrameIndex: seq - 1,
			Detections: []types.Detection{{ClassName: "lychee", Ripeness: types.RipenessRed, Confidence: 0.9}},
		},
	}
}

func summaryRecord(seq int64) *types.Record {
	return &types.Record{
		Kind:      types.RecordKindSummary,
		SessionID: "sess-1",
		Seq:       seq,
		Summary:   &types.SessionSummary{TotalDetected: 1, HarvestSuggestion: types.HarvestReady},
	}
}

func errorRecord(seq int64) *types.Record {
	return &types.Record{
		Kind:      types.RecordKindError,
		SessionID: "sess-1",
		Seq:       seq,
		Detail:    "empty frame",
	}
}
