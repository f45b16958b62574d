package types

import (
	"errors"
	"time"
)

// SessionMeta identifies one streaming session.
type SessionMeta struct {
	// SessionID is the client-generated session identifier.
	SessionID string
	// Source labels the video source (camera, orchard row, file set).
	Source string
	// Endpoint is the resolved stream URL. May be empty before Start.
	Endpoint string
}

// Validate checks the required identity fields.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if m.Source == "" {
		return errors.New("source must be non-empty")
	}
	return nil
}

// RecordKind discriminates recorded inbound messages.
type RecordKind string

// Record kinds, one per envelope variant.
const (
	RecordKindFrame   RecordKind = "frame"
	RecordKindSummary RecordKind = "summary"
	RecordKindError   RecordKind = "error"
)

// Record is one inbound envelope as captured by the recorder.
// Exactly one of Frame, Summary or Detail is set, matching Kind.
type Record struct {
	Kind          RecordKind
	SessionID     string
	Seq           int64
	ReceivedAt    time.Time
	ModelVersion  string
	SchemaVersion string
	Frame         *FrameResult
	Summary       *SessionSummary
	Detail        string
}
