package reader

import (
	"context"
	"errors"

	lodeds "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ripestream/lode"
)

// Reader abstracts read-only access to recorded sessions.
type Reader interface {
	InspectSession(ctx context.Context, sessionID, source string) (*InspectSessionResponse, error)
	SessionMetrics(ctx context.Context, sessionID, source string) (*MetricsSnapshot, error)
}

// LodeReader reads sessions from a Lode dataset.
type LodeReader struct {
	ds lodeds.Dataset
}

// NewLodeReader creates a reader over ds.
func NewLodeReader(ds lodeds.Dataset) *LodeReader {
	return &LodeReader{ds: ds}
}

// InspectSession reassembles a session. A missing metrics record is not an
// error; a malformed one is.
func (r *LodeReader) InspectSession(ctx context.Context, sessionID, source string) (*InspectSessionResponse, error) {
	view, err := lode.QuerySession(ctx, r.ds, sessionID, source)
	if err != nil {
		return nil, err
	}

	resp := &InspectSessionResponse{
		SessionID:     view.SessionID,
		Source:        view.Source,
		Day:           view.Day,
		ModelVersion:  view.ModelVersion,
		SchemaVersion: view.SchemaVersion,
		Frames:        view.Frames,
		Errors:        len(view.Errors),
	}
	if n := len(view.Errors); n > 0 {
		resp.LastError = view.Errors[n-1]
	}
	if view.Summary != nil {
		ratio := view.Summary.RipenessRatio
		resp.HasSummary = true
		resp.TotalDetected = view.Summary.TotalDetected
		resp.HarvestSuggestion = view.Summary.HarvestSuggestion
		resp.RipenessRatio = &ratio
	}
	if view.LastFrame != nil {
		tally := view.LastFrame.FrameSummary
		resp.LastFrameSummary = &tally
	}
	if view.Metrics != nil {
		snap, err := ParseMetricsRecord(view.Metrics)
		if err != nil {
			return nil, err
		}
		resp.Metrics = snap
	}
	return resp, nil
}

// SessionMetrics returns the latest metrics record for a session.
// Returns lode.ErrNoMetricsFound when none was written.
func (r *LodeReader) SessionMetrics(ctx context.Context, sessionID, source string) (*MetricsSnapshot, error) {
	record, err := lode.QueryLatestMetrics(ctx, r.ds, sessionID, source)
	if err != nil {
		return nil, err
	}
	return ParseMetricsRecord(record)
}

// IsNotFound reports whether err means the session or its metrics do not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, lode.ErrSessionNotFound) || errors.Is(err, lode.ErrNoMetricsFound)
}

var _ Reader = (*LodeReader)(nil)
