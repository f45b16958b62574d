// Package adapter defines the notification boundary for finished sessions.
//
// Adapters publish session completion notifications to downstream systems.
// The CLI owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// EventTypeSessionCompleted is the only event type published.
const EventTypeSessionCompleted = "session_completed"

// SessionCompletedEvent is the payload published when a session ends.
type SessionCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "session_completed"
	SessionID       string `json:"session_id"`
	Source          string `json:"source"`
	Day             string `json:"day"`
	Endpoint        string `json:"endpoint"`
	Outcome         string `json:"outcome"` // stopped, session_error, etc.
	ExitCode        int    `json:"exit_code"`
	Message         string `json:"message,omitempty"`
	StopReason      string `json:"stop_reason,omitempty"`
	StoragePath     string `json:"storage_path,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	FramesSent      int64  `json:"frames_sent"`
	FramesReceived  int64  `json:"frames_received"`
	RecordCount     int64  `json:"record_count"`
	DurationMs      int64  `json:"duration_ms"`
	// HarvestSuggestion and TotalDetected are copied from the session
	// summary; empty/zero when none arrived.
	HarvestSuggestion string `json:"harvest_suggestion,omitempty"`
	TotalDetected     int    `json:"total_detected"`
}

// Adapter publishes session completion events to a downstream system.
type Adapter interface {
	// Publish sends a session completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
