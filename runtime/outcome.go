package runtime

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

// Process exit codes for the stream command.
const (
	ExitCodeStopped          = 0 // session ended in stopped
	ExitCodeSessionError     = 1 // session ended in error
	ExitCodeSetupFailure     = 2 // never reached streaming, or invalid input
	ExitCodeRecordingFailure = 3 // records could not be persisted
)

// ExitCodeFor maps an outcome status to the process exit code.
func ExitCodeFor(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeStopped:
		return ExitCodeStopped
	case types.OutcomeSessionError:
		return ExitCodeSessionError
	case types.OutcomeRecordingFailure:
		return ExitCodeRecordingFailure
	default:
		return ExitCodeSetupFailure
	}
}

// DetermineOutcome classifies a finished session.
//
// Precedence:
//  1. Start failed: setup_failure (a cancelled connect counts as stopped)
//  2. Final state error: session_error
//  3. Recording failed: recording_failure
//  4. Otherwise: stopped
func DetermineOutcome(startErr error, final stream.Session, recordErr error) *types.SessionOutcome {
	if startErr != nil {
		if errors.Is(startErr, stream.ErrConnectCanceled) {
			return &types.SessionOutcome{
				Status:  types.OutcomeStopped,
				Message: "session cancelled before streaming",
			}
		}
		return &types.SessionOutcome{
			Status:  types.OutcomeSetupFailure,
			Message: fmt.Sprintf("failed to start session: %v", startErr),
			Detail:  final.LastError,
		}
	}

	if final.State == stream.StateError {
		msg := "session ended in error"
		if final.LastError != nil {
			msg = fmt.Sprintf("session ended in error: %s", *final.LastError)
		}
		return &types.SessionOutcome{
			Status:  types.OutcomeSessionError,
			Message: msg,
			Detail:  final.LastError,
		}
	}

	if recordErr != nil {
		return &types.SessionOutcome{
			Status:  types.OutcomeRecordingFailure,
			Message: fmt.Sprintf("recording failed: %v", recordErr),
			Detail:  final.LastError,
		}
	}

	msg := "session stopped"
	if final.Summary == nil {
		msg = "session stopped without summary"
	}
	return &types.SessionOutcome{
		Status:  types.OutcomeStopped,
		Message: msg,
		Detail:  final.LastError,
	}
}
