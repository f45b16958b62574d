// Package types defines the wire and session types shared by the streaming
// client, the recorder and the CLI.
//
// Field names and JSON tags match the inference service schema.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Ripeness is the ripeness category assigned to a detection.
type Ripeness string

// Ripeness categories.
const (
	RipenessGreen Ripeness = "green"
	RipenessHalf  Ripeness = "half"
	RipenessRed   Ripeness = "red"
	RipenessYoung Ripeness = "young"
)

// RipenessClasses lists the categories in display order.
var RipenessClasses = []Ripeness{RipenessGreen, RipenessHalf, RipenessRed, RipenessYoung}

// Valid reports whether r is a known category.
func (r Ripeness) Valid() bool {
	switch r {
	case RipenessGreen, RipenessHalf, RipenessRed, RipenessYoung:
		return true
	default:
		return false
	}
}

// HarvestSuggestion is the session-level recommendation produced by the server.
type HarvestSuggestion string

// Harvest suggestions.
const (
	HarvestNotReady       HarvestSuggestion = "not_ready"
	HarvestPartiallyReady HarvestSuggestion = "partially_ready"
	HarvestReady          HarvestSuggestion = "ready"
	HarvestOverripeRisk   HarvestSuggestion = "overripe_risk"
)

// Valid reports whether s is one of the enumerated suggestions.
func (s HarvestSuggestion) Valid() bool {
	switch s {
	case HarvestNotReady, HarvestPartiallyReady, HarvestReady, HarvestOverripeRisk:
		return true
	default:
		return false
	}
}

// Detection is a single detected fruit within a frame.
type Detection struct {
	// BBox is (x1, y1, x2, y2) in pixels of the transmitted frame.
	BBox      [4]float64 `json:"bbox"`
	ClassName string     `json:"class_name"`
	Ripeness  Ripeness   `json:"ripeness"`
	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`
	// TrackID is nil when the tracker has not assigned an identity.
	TrackID *int64 `json:"track_id"`
}

// RipenessTally counts detections per ripeness category within one frame.
type RipenessTally struct {
	Total int `json:"total"`
	Green int `json:"green"`
	Half  int `json:"half"`
	Red   int `json:"red"`
	Young int `json:"young"`
}

// Count returns the tally for a single category.
func (t RipenessTally) Count(r Ripeness) int {
	switch r {
	case RipenessGreen:
		return t.Green
	case RipenessHalf:
		return t.Half
	case RipenessRed:
		return t.Red
	case RipenessYoung:
		return t.Young
	default:
		return 0
	}
}

// FrameResult is the server's analysis of one transmitted frame.
type FrameResult struct {
	FrameIndex   int64         `json:"frame_index"`
	TimestampMs  int64         `json:"timestamp_ms"`
	Detections   []Detection   `json:"detections"`
	FrameSummary RipenessTally `json:"frame_summary"`
}

// Validate checks the non-negativity and range constraints of a frame result.
func (f *FrameResult) Validate() error {
	if f.FrameIndex < 0 {
		return fmt.Errorf("frame_index must be >= 0, got %d", f.FrameIndex)
	}
	if f.TimestampMs < 0 {
		return fmt.Errorf("timestamp_ms must be >= 0, got %d", f.TimestampMs)
	}
	for i, d := range f.Detections {
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("detections[%d]: confidence %v out of range [0,1]", i, d.Confidence)
		}
	}
	return nil
}

// RipenessRatio is the fraction of unique detections per category.
// Fractions sum to ~1, or are all zero when nothing was detected.
type RipenessRatio struct {
	Green float64 `json:"green"`
	Half  float64 `json:"half"`
	Red   float64 `json:"red"`
	Young float64 `json:"young"`
}

// Sum returns the total of all fractions.
func (r RipenessRatio) Sum() float64 {
	return r.Green + r.Half + r.Red + r.Young
}

// SessionSummary is the terminal artifact of a session.
type SessionSummary struct {
	TotalDetected     int               `json:"total_detected"`
	RipenessRatio     RipenessRatio     `json:"ripeness_ratio"`
	HarvestSuggestion HarvestSuggestion `json:"harvest_suggestion"`
}

// Validate checks the summary against the enumerated suggestion set.
func (s *SessionSummary) Validate() error {
	if s.TotalDetected < 0 {
		return fmt.Errorf("total_detected must be >= 0, got %d", s.TotalDetected)
	}
	if !s.HarvestSuggestion.Valid() {
		return fmt.Errorf("unknown harvest_suggestion %q", s.HarvestSuggestion)
	}
	return nil
}
