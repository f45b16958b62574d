package lode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ripestream/types"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// ErrSessionNotFound is returned when no records exist for a session.
var ErrSessionNotFound = errors.New("session not found")

// SessionView is a recorded session reassembled from the dataset.
type SessionView struct {
	SessionID     string
	Source        string
	Day           string
	ModelVersion  string
	SchemaVersion string
	// Frames is the number of distinct frame records.
	Frames int
	// LastFrame is the frame record with the highest seq, if any.
	LastFrame *types.FrameResult
	// Summary is the session summary, if one was recorded.
	Summary *types.SessionSummary
	// Errors holds error details in seq order.
	Errors []string
	// Metrics is the raw metrics record, if one was written.
	Metrics map[string]any
}

// QueryLatestMetrics finds and reads the most recent metrics record.
// Filters by sessionID and source if non-empty.
// Returns the raw record map or ErrNoMetricsFound if none exist.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, sessionID, source string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered by creation time; newest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotHasKind(snap, RecordKindMetrics) ||
			!snapshotMatchesFilter(snap, "session_id", sessionID) ||
			!snapshotMatchesFilter(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields decide.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if !recordMatches(record, sessionID, source) {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoMetricsFound
}

// QuerySession reads every record of a session and reassembles it.
// Records seen in more than one snapshot are counted once, keyed by
// (record_kind, seq).
func QuerySession(ctx context.Context, ds lode.Dataset, sessionID, source string) (*SessionView, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	type key struct {
		kind string
		seq  int64
	}
	seen := make(map[key]map[string]any)
	var metricsRecord map[string]any

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "session_id", sessionID) ||
			!snapshotMatchesFilter(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || !recordMatches(record, sessionID, source) {
				continue
			}
			kind := toString(record["record_kind"])
			if kind == RecordKindMetrics {
				if metricsRecord == nil {
					metricsRecord = record
				}
				continue
			}
			k := key{kind: kind, seq: toInt64(record["seq"])}
			if _, dup := seen[k]; !dup {
				seen[k] = record
			}
		}
	}

	if len(seen) == 0 && metricsRecord == nil {
		return nil, ErrSessionNotFound
	}

	records := make([]map[string]any, 0, len(seen))
	for _, r := range seen {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return toInt64(records[i]["seq"]) < toInt64(records[j]["seq"])
	})

	view := &SessionView{SessionID: sessionID, Source: source, Metrics: metricsRecord}
	for _, r := range records {
		if view.Source == "" {
			view.Source = toString(r["source"])
		}
		if view.Day == "" {
			view.Day = toString(r["day"])
		}
		if v := toString(r["model_version"]); v != "" {
			view.ModelVersion = v
		}
		if v := toString(r["schema_version"]); v != "" {
			view.SchemaVersion = v
		}

		switch types.RecordKind(toString(r["record_kind"])) {
		case types.RecordKindFrame:
			view.Frames++
			var frame types.FrameResult
			if err := decodeField(r["frame"], &frame); err != nil {
				return nil, fmt.Errorf("decode frame seq %d: %w", toInt64(r["seq"]), err)
			}
			view.LastFrame = &frame
		case types.RecordKindSummary:
			var summary types.SessionSummary
			if err := decodeField(r["summary"], &summary); err != nil {
				return nil, fmt.Errorf("decode summary seq %d: %w", toInt64(r["seq"]), err)
			}
			view.Summary = &summary
		case types.RecordKindError:
			view.Errors = append(view.Errors, toString(r["detail"]))
		}
	}
	if view.Source == "" && metricsRecord != nil {
		view.Source = toString(metricsRecord["source"])
		view.Day = toString(metricsRecord["day"])
	}

	return view, nil
}

func recordMatches(record map[string]any, sessionID, source string) bool {
	if sessionID != "" && toString(record["session_id"]) != sessionID {
		return false
	}
	if source != "" && toString(record["source"]) != source {
		return false
	}
	return true
}

// decodeField converts a decoded JSON value (a generic map after a
// read) or an in-memory struct into dst.
func decodeField(v any, dst any) error {
	if v == nil {
		return errors.New("missing payload")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 converts a numeric value decoded from JSONL or held in memory.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
