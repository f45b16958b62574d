package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/types"
)

// SessionReport is the structured JSON report written by --report.
type SessionReport struct {
	SessionID      string              `json:"session_id"`
	Source         string              `json:"source"`
	Endpoint       string              `json:"endpoint"`
	Outcome        types.OutcomeStatus `json:"outcome"`
	Message        string              `json:"message"`
	Detail         *string             `json:"detail,omitempty"`
	ExitCode       int                 `json:"exit_code"`
	StopReason     string              `json:"stop_reason,omitempty"`
	DurationMs     int64               `json:"duration_ms"`
	FramesReceived int64               `json:"frames_received"`
	ModelVersion   *string             `json:"model_version,omitempty"`
	SchemaVersion  *string             `json:"schema_version,omitempty"`

	Summary   *types.SessionSummary `json:"summary,omitempty"`
	LastFrame *types.RipenessTally  `json:"last_frame_summary,omitempty"`

	Recording *ReportRecording `json:"recording"`
	Metrics   *metrics.Snapshot `json:"metrics"`
}

// ReportRecording holds policy stats in the report.
type ReportRecording struct {
	Policy           string           `json:"policy"`
	RecordsReceived  int64            `json:"records_received"`
	RecordsPersisted int64            `json:"records_persisted"`
	RecordsDropped   int64            `json:"records_dropped"`
	DroppedByKind    map[string]int64 `json:"dropped_by_kind,omitempty"`
	Flushes          int64            `json:"flushes"`
}

// BuildSessionReport composes a report from a result and metrics snapshot.
func BuildSessionReport(result *SessionResult, snap metrics.Snapshot, policyName string, exitCode int) *SessionReport {
	final := result.Final
	report := &SessionReport{
		SessionID:      result.Meta.SessionID,
		Source:         result.Meta.Source,
		Endpoint:       final.Endpoint,
		Outcome:        result.Outcome.Status,
		Message:        result.Outcome.Message,
		Detail:         result.Outcome.Detail,
		ExitCode:       exitCode,
		StopReason:     string(result.StopReason),
		DurationMs:     result.Duration.Milliseconds(),
		FramesReceived: final.FramesReceived,
		ModelVersion:   final.ModelVersion,
		SchemaVersion:  final.SchemaVersion,
		Summary:        final.Summary,
		Recording: &ReportRecording{
			Policy:           policyName,
			RecordsReceived:  result.PolicyStats.TotalRecords,
			RecordsPersisted: result.PolicyStats.RecordsPersisted,
			RecordsDropped:   result.PolicyStats.RecordsDropped,
			Flushes:          result.PolicyStats.FlushCount,
		},
		Metrics: &snap,
	}

	if final.LastFrame != nil {
		tally := final.LastFrame.FrameSummary
		report.LastFrame = &tally
	}
	if len(result.PolicyStats.DroppedByKind) > 0 {
		report.Recording.DroppedByKind = make(map[string]int64, len(result.PolicyStats.DroppedByKind))
		for k, v := range result.PolicyStats.DroppedByKind {
			report.Recording.DroppedByKind[string(k)] = v
		}
	}

	return report
}

// WriteSessionReport writes the report as JSON to path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *SessionReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
