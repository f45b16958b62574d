package reader

import "errors"

// ParseMetricsRecord converts a Lode record (map[string]any) to a MetricsSnapshot.
// Handles both int64 (direct writes) and float64 (JSON round-trips) for numeric fields.
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts: toString(record["ts"]),

		SessionsStarted:  toInt64(record["sessions_started"]),
		SessionsStopped:  toInt64(record["sessions_stopped"]),
		SessionsErrored:  toInt64(record["sessions_errored"]),
		ConnectFailures:  toInt64(record["connect_failures"]),
		ConnectTimeouts:  toInt64(record["connect_timeouts"]),
		ShutdownTimeouts: toInt64(record["shutdown_timeouts"]),

		FramesSent:     toInt64(record["frames_sent"]),
		FramesSkipped:  toInt64(record["frames_skipped"]),
		BytesSent:      toInt64(record["bytes_sent"]),
		TicksCoalesced: toInt64(record["ticks_coalesced"]),

		DecodeErrors:    toInt64(record["decode_errors"]),
		TransportErrors: toInt64(record["transport_errors"]),

		RecordsReceived:  toInt64(record["records_received"]),
		RecordsPersisted: toInt64(record["records_persisted"]),
		RecordsDropped:   toInt64(record["records_dropped"]),

		LodeWriteSuccess: toInt64(record["lode_write_success"]),
		LodeWriteFailure: toInt64(record["lode_write_failure"]),

		Policy:         toString(record["policy"]),
		StorageBackend: toString(record["storage_backend"]),
		SessionID:      toString(record["session_id"]),
		Source:         toString(record["source"]),
	}

	if ebt, ok := record["envelopes_by_type"]; ok && ebt != nil {
		snap.EnvelopesByType = parseCounts(ebt)
	}

	// The write path always populates these.
	if snap.Ts == "" {
		return nil, errors.New("metrics record missing required field: ts")
	}
	if snap.SessionID == "" {
		return nil, errors.New("metrics record missing required field: session_id")
	}
	if snap.Policy == "" {
		return nil, errors.New("metrics record missing required field: policy")
	}

	return snap, nil
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// parseCounts converts a counter map from Lode record format.
// Handles both map[string]int64 (direct) and map[string]any (JSON round-trip).
func parseCounts(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		result := make(map[string]int64, len(m))
		for k, val := range m {
			result[k] = toInt64(val)
		}
		return result
	default:
		return nil
	}
}
