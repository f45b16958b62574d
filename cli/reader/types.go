// Package reader turns recorded sessions into CLI response payloads.
//
// The same payloads feed table/json/yaml rendering and the TUI views.
package reader

import "github.com/pithecene-io/ripestream/types"

// InspectSessionResponse describes one recorded session.
type InspectSessionResponse struct {
	SessionID     string `json:"session_id"`
	Source        string `json:"source"`
	Day           string `json:"day"`
	ModelVersion  string `json:"model_version,omitempty"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Frames        int    `json:"frames"`
	Errors        int    `json:"errors"`
	// LastError is the detail of the most recent error record.
	LastError         string                   `json:"last_error,omitempty"`
	HasSummary        bool                     `json:"has_summary"`
	TotalDetected     int                      `json:"total_detected"`
	HarvestSuggestion types.HarvestSuggestion  `json:"harvest_suggestion,omitempty"`
	RipenessRatio     *types.RipenessRatio     `json:"ripeness_ratio,omitempty"`
	LastFrameSummary  *types.RipenessTally     `json:"last_frame_summary,omitempty"`
	Metrics           *MetricsSnapshot         `json:"metrics,omitempty"`
}

// MetricsSnapshot is a parsed per-session metrics record.
type MetricsSnapshot struct {
	Ts string `json:"ts"`

	// Session lifecycle
	SessionsStarted  int64 `json:"sessions_started"`
	SessionsStopped  int64 `json:"sessions_stopped"`
	SessionsErrored  int64 `json:"sessions_errored"`
	ConnectFailures  int64 `json:"connect_failures"`
	ConnectTimeouts  int64 `json:"connect_timeouts"`
	ShutdownTimeouts int64 `json:"shutdown_timeouts"`

	// Capture
	FramesSent     int64 `json:"frames_sent"`
	FramesSkipped  int64 `json:"frames_skipped"`
	BytesSent      int64 `json:"bytes_sent"`
	TicksCoalesced int64 `json:"ticks_coalesced"`

	// Inbound
	EnvelopesByType map[string]int64 `json:"envelopes_by_type,omitempty"`
	DecodeErrors    int64            `json:"decode_errors"`
	TransportErrors int64            `json:"transport_errors"`

	// Recording
	RecordsReceived  int64 `json:"records_received"`
	RecordsPersisted int64 `json:"records_persisted"`
	RecordsDropped   int64 `json:"records_dropped"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Dimensions
	Policy         string `json:"policy"`
	StorageBackend string `json:"storage_backend"`
	SessionID      string `json:"session_id"`
	Source         string `json:"source"`
}
