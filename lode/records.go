package lode

import (
	"time"

	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/types"
)

// RecordKindMetrics marks the per-session metrics record. It shares the
// record_kind partition with the envelope kinds in types.RecordKind.
const RecordKindMetrics = "metrics"

// toRecordMap converts a session record to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any carrying every
// partition key.
func toRecordMap(rec *types.Record, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":      string(rec.Kind),
		"contract_version": types.ContractVersion,
		"session_id":       rec.SessionID,
		"seq":              rec.Seq,
		"received_at":      rec.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"source":           cfg.Source,
		"day":              cfg.Day,
	}
	if rec.SessionID == "" {
		m["session_id"] = cfg.SessionID
	}
	if rec.ModelVersion != "" {
		m["model_version"] = rec.ModelVersion
	}
	if rec.SchemaVersion != "" {
		m["schema_version"] = rec.SchemaVersion
	}
	switch rec.Kind {
	case types.RecordKindFrame:
		if rec.Frame != nil {
			m["frame"] = *rec.Frame
		}
	case types.RecordKindSummary:
		if rec.Summary != nil {
			m["summary"] = *rec.Summary
		}
	case types.RecordKindError:
		m["detail"] = rec.Detail
	}
	return m
}

// toMetricsRecordMap converts a metrics snapshot to a map for Lode storage.
func toMetricsRecordMap(snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	envelopes := make(map[string]any, len(snap.EnvelopesByType))
	for k, v := range snap.EnvelopesByType {
		envelopes[k] = v
	}
	return map[string]any{
		"record_kind":       RecordKindMetrics,
		"contract_version":  types.ContractVersion,
		"ts":                completedAt.UTC().Format(time.RFC3339Nano),
		"session_id":        cfg.SessionID,
		"source":            cfg.Source,
		"day":               cfg.Day,
		"policy":            cfg.Policy,
		"storage_backend":   snap.StorageBackend,
		"sessions_started":  snap.SessionsStarted,
		"sessions_stopped":  snap.SessionsStopped,
		"sessions_errored":  snap.SessionsErrored,
		"connect_failures":  snap.ConnectFailures,
		"connect_timeouts":  snap.ConnectTimeouts,
		"shutdown_timeouts": snap.ShutdownTimeouts,
		"frames_sent":       snap.FramesSent,
		"frames_skipped":    snap.FramesSkipped,
		"bytes_sent":        snap.BytesSent,
		"ticks_coalesced":   snap.TicksCoalesced,
		"envelopes_by_type": envelopes,
		"decode_errors":     snap.DecodeErrors,
		"transport_errors":  snap.TransportErrors,
		"records_received":  snap.RecordsReceived,
		"records_persisted": snap.RecordsPersisted,
		"records_dropped":   snap.RecordsDropped,
		"lode_write_success": snap.LodeWriteSuccess,
		"lode_write_failure": snap.LodeWriteFailure,
	}
}
