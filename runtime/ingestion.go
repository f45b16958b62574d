package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/ripestream/envelope"
	"github.com/pithecene-io/ripestream/log"
	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

// IngestionError classifies recording errors for outcome determination.
type IngestionError struct {
	// Kind indicates whether this is a policy error or a cancellation.
	Kind IngestionErrorKind
	// Err is the underlying error.
	Err error
}

// IngestionErrorKind classifies recording errors.
type IngestionErrorKind int

const (
	// IngestionErrorPolicy indicates a policy or sink failure.
	IngestionErrorPolicy IngestionErrorKind = iota
	// IngestionErrorCanceled indicates context cancellation.
	IngestionErrorCanceled
)

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IsPolicyError returns true if the error is a policy failure.
func IsPolicyError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorPolicy
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorCanceled
	}
	return false
}

// DefaultRecorderQueue is the number of records the recorder holds before
// OnEnvelope blocks.
const DefaultRecorderQueue = 256

// Recorder turns applied envelopes into types.Record values and hands them
// to a policy on its own goroutine, so observer callbacks return quickly.
//
//   - Records keep delivery order
//   - Seq is strictly monotonic per session, starting at 1
//   - The first policy error stops recording; the stream keeps running
type Recorder struct {
	ctx    context.Context
	policy policy.Policy
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex // guards seq, closed and queue sends
	seq    int64
	closed bool

	errMu sync.Mutex
	err   error

	queue chan *types.Record
	done  chan struct{}
}

// NewRecorder creates a recorder and starts its ingest goroutine.
// ctx bounds every Ingest call.
func NewRecorder(ctx context.Context, pol policy.Policy, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Nop()
	}
	r := &Recorder{
		ctx:    ctx,
		policy: pol,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan *types.Record, DefaultRecorderQueue),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// OnEnvelope implements stream.Observer.
func (r *Recorder) OnEnvelope(s stream.Session, env envelope.Envelope) {
	if r.Err() != nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.seq++
	rec := RecordFromEnvelope(s.ID, r.seq, r.now(), env)
	// Sending under mu keeps seq order equal to queue order.
	r.queue <- rec
	r.mu.Unlock()
}

// OnState implements stream.Observer.
func (r *Recorder) OnState(stream.Session, stream.State) {}

// Seq returns the number of records handed to the policy so far.
func (r *Recorder) Seq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Err returns the first recording failure, if any.
func (r *Recorder) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Close stops accepting records and waits for the queue to drain.
// It returns the first recording failure.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return r.Err()
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		if r.Err() != nil {
			continue
		}
		if err := r.policy.Ingest(r.ctx, rec); err != nil {
			r.fail(rec, err)
		}
	}
}

func (r *Recorder) fail(rec *types.Record, err error) {
	kind := IngestionErrorPolicy
	if r.ctx.Err() != nil {
		kind = IngestionErrorCanceled
	}

	r.errMu.Lock()
	if r.err == nil {
		r.err = &IngestionError{Kind: kind, Err: err}
	}
	r.errMu.Unlock()

	r.logger.Error("recording failed", map[string]any{
		"record_kind": string(rec.Kind),
		"seq":         rec.Seq,
		"error":       err.Error(),
	})
}

// RecordFromEnvelope builds the record for one applied envelope.
func RecordFromEnvelope(sessionID string, seq int64, receivedAt time.Time, env envelope.Envelope) *types.Record {
	rec := &types.Record{
		SessionID:  sessionID,
		Seq:        seq,
		ReceivedAt: receivedAt,
	}
	switch e := env.(type) {
	case *envelope.Frame:
		result := e.Result
		rec.Kind = types.RecordKindFrame
		rec.ModelVersion = e.ModelVersion
		rec.SchemaVersion = e.SchemaVersion
		rec.Frame = &result
	case *envelope.Summary:
		summary := e.Summary
		rec.Kind = types.RecordKindSummary
		rec.ModelVersion = e.ModelVersion
		rec.SchemaVersion = e.SchemaVersion
		rec.Summary = &summary
	case *envelope.Error:
		rec.Kind = types.RecordKindError
		rec.Detail = e.Detail
	}
	return rec
}

var _ stream.Observer = (*Recorder)(nil)
