package types

// OutcomeStatus is the final classification of a streaming session.
type OutcomeStatus string

const (
	// OutcomeStopped indicates the session ended in stopped.
	OutcomeStopped OutcomeStatus = "stopped"
	// OutcomeSessionError indicates the session ended in error after it
	// started streaming (transport failure or server error envelope).
	OutcomeSessionError OutcomeStatus = "session_error"
	// OutcomeSetupFailure indicates the session never reached streaming.
	OutcomeSetupFailure OutcomeStatus = "setup_failure"
	// OutcomeRecordingFailure indicates the stream ended but its records
	// could not be persisted.
	OutcomeRecordingFailure OutcomeStatus = "recording_failure"
)

// SessionOutcome is the final outcome of a session.
type SessionOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `json:"status"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Detail is the session's last error detail, if any.
	Detail *string `json:"detail,omitempty"`
}
