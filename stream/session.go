package stream

import (
	"time"

	"github.com/pithecene-io/ripestream/envelope"
	"github.com/pithecene-io/ripestream/types"
)

// Session is a snapshot of the current streaming session. Pointer fields
// are nil until the corresponding value has been observed. Values behind
// the pointers are replaced wholesale and never mutated.
type Session struct {
	ID        string
	State     State
	Endpoint  string
	StartedAt time.Time

	LastFrame     *types.FrameResult
	Summary       *types.SessionSummary
	LastError     *string
	ModelVersion  *string
	SchemaVersion *string

	FramesReceived int64
}

// Observer receives session updates. Envelope callbacks run on the
// connection's read goroutine in delivery order; state callbacks run on
// whichever goroutine caused the transition. Callbacks must not block and
// must not call back into the Machine.
type Observer interface {
	// OnEnvelope is called after env has been applied; s reflects it.
	OnEnvelope(s Session, env envelope.Envelope)
	// OnState is called after a transition from one state to s.State.
	OnState(s Session, from State)
}

// Observers fans out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) OnEnvelope(s Session, env envelope.Envelope) {
	for _, o := range m {
		o.OnEnvelope(s, env)
	}
}

func (m multiObserver) OnState(s Session, from State) {
	for _, o := range m {
		o.OnState(s, from)
	}
}

func ptr[T any](v T) *T {
	return &v
}
