package runtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

func TestDetermineOutcome(t *testing.T) {
	interrupted := stream.DetailInterrupted
	summary := &types.SessionSummary{TotalDetected: 3, HarvestSuggestion: types.HarvestReady}

	tests := []struct {
		name      string
		startErr  error
		final     stream.Session
		recordErr error
		want      types.OutcomeStatus
		exitCode  int
	}{
		{
			name:     "stopped with summary",
			final:    stream.Session{State: stream.StateStopped, Summary: summary},
			want:     types.OutcomeStopped,
			exitCode: ExitCodeStopped,
		},
		{
			name:     "stopped without summary",
			final:    stream.Session{State: stream.StateStopped},
			want:     types.OutcomeStopped,
			exitCode: ExitCodeStopped,
		},
		{
			name:     "connect timeout",
			startErr: fmt.Errorf("dial: %w", stream.ErrConnectTimeout),
			final:    stream.Session{State: stream.StateError},
			want:     types.OutcomeSetupFailure,
			exitCode: ExitCodeSetupFailure,
		},
		{
			name:     "connect cancelled",
			startErr: stream.ErrConnectCanceled,
			final:    stream.Session{State: stream.StateStopped},
			want:     types.OutcomeStopped,
			exitCode: ExitCodeStopped,
		},
		{
			name:      "transport error wins over recording failure",
			final:     stream.Session{State: stream.StateError, LastError: &interrupted},
			recordErr: errors.New("disk full"),
			want:      types.OutcomeSessionError,
			exitCode:  ExitCodeSessionError,
		},
		{
			name:      "recording failure",
			final:     stream.Session{State: stream.StateStopped, Summary: summary},
			recordErr: &IngestionError{Kind: IngestionErrorPolicy, Err: errors.New("disk full")},
			want:      types.OutcomeRecordingFailure,
			exitCode:  ExitCodeRecordingFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineOutcome(tt.startErr, tt.final, tt.recordErr)
			if got.Status != tt.want {
				t.Fatalf("Status = %q, want %q (message %q)", got.Status, tt.want, got.Message)
			}
			if code := ExitCodeFor(got.Status); code != tt.exitCode {
				t.Errorf("ExitCodeFor(%q) = %d, want %d", got.Status, code, tt.exitCode)
			}
		})
	}
}

func TestDetermineOutcome_SessionErrorCarriesDetail(t *testing.T) {
	detail := "inference backend unavailable"
	got := DetermineOutcome(nil, stream.Session{State: stream.StateError, LastError: &detail}, nil)
	if got.Detail == nil || *got.Detail != detail {
		t.Fatalf("Detail = %v, want %q", got.Detail, detail)
	}
	if got.Message != "session ended in error: inference backend unavailable" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestExitCodeFor_Unknown(t *testing.T) {
	if got := ExitCodeFor("bogus"); got != ExitCodeSetupFailure {
		t.Errorf("ExitCodeFor(bogus) = %d, want %d", got, ExitCodeSetupFailure)
	}
}
