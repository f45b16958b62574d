// Package runtime orchestrates one streaming session: it drives the stream
// state machine, records inbound envelopes through a policy and classifies
// the outcome.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/ripestream/encoder"
	"github.com/pithecene-io/ripestream/envelope"
	"github.com/pithecene-io/ripestream/iox"
	"github.com/pithecene-io/ripestream/log"
	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

// DefaultSettleGrace is added to the shutdown timeout when waiting for a
// stopped session to settle.
const DefaultSettleGrace = 2 * time.Second

// flushTimeout bounds the final policy flush.
const flushTimeout = 30 * time.Second

// exhaustedPoll is how often a finite source is checked for exhaustion.
const exhaustedPoll = 100 * time.Millisecond

// Exhaustible is implemented by frame sources that can run out of frames.
type Exhaustible interface {
	Done() bool
}

// SessionConfig configures a single streaming session.
type SessionConfig struct {
	// Meta is the session identity. SessionID and Source are required.
	Meta *types.SessionMeta
	// Stream configures the state machine. Its Observer, Logger and
	// Metrics fields are filled in by the orchestrator.
	Stream stream.Config
	// Source provides frames.
	Source encoder.FrameSource
	// FPS is the target capture rate. Zero uses stream.DefaultFPS.
	FPS float64
	// Encoder configures frame encoding. The zero value means
	// encoder.DefaultOptions().
	Encoder encoder.Options
	// Policy records inbound envelopes. If nil, a NoopPolicy is used.
	Policy policy.Policy
	// Collector is the metrics collector. Nil disables metrics.
	Collector *metrics.Collector
	// Logger overrides the session logger.
	Logger *log.Logger
	// Observer is an optional extra observer (live dashboard).
	Observer stream.Observer
	// Duration stops the session after a wall-clock budget. Zero disables.
	Duration time.Duration
	// MaxFrames stops the session after N frame results. Zero disables.
	MaxFrames int64
	// SettleGrace overrides DefaultSettleGrace.
	SettleGrace time.Duration
}

// StopReason says why the orchestrator asked the session to stop.
type StopReason string

const (
	StopReasonNone      StopReason = ""
	StopReasonCanceled  StopReason = "canceled"
	StopReasonDuration  StopReason = "duration"
	StopReasonMaxFrames StopReason = "max_frames"
	StopReasonExhausted StopReason = "source_exhausted"
	StopReasonSettled   StopReason = "settled"
)

// SessionResult represents the result of a session.
type SessionResult struct {
	// Meta is the session identity.
	Meta *types.SessionMeta
	// Outcome is the session outcome.
	Outcome *types.SessionOutcome
	// Final is the session snapshot after it settled.
	Final stream.Session
	// StopReason says what ended the session.
	StopReason StopReason
	// Duration is the total session duration.
	Duration time.Duration
	// PolicyStats is the recording policy statistics.
	PolicyStats policy.Stats
	// RecordCount is the number of records handed to the policy.
	RecordCount int64
}

// SessionOrchestrator runs one session end to end.
type SessionOrchestrator struct {
	config    *SessionConfig
	logger    *log.Logger
	startTime time.Time
}

// NewSessionOrchestrator creates an orchestrator.
// Returns error if the session metadata is invalid.
func NewSessionOrchestrator(config *SessionConfig) (*SessionOrchestrator, error) {
	if config.Meta == nil {
		return nil, errors.New("invalid session metadata: missing")
	}
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session metadata: %w", err)
	}
	if config.Source == nil {
		return nil, errors.New("frame source is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.Meta)
	}

	return &SessionOrchestrator{config: config, logger: logger}, nil
}

// Execute runs the session:
//  1. Start the machine (connect, begin capture)
//  2. Wait for a stop trigger or for the session to settle by itself
//  3. Stop gracefully and wait for the summary or the deadline
//  4. Drain the recorder and flush the policy
//  5. Determine the outcome
//
// Setup and session failures are reported through the outcome; the
// returned error is reserved for orchestration failures.
func (o *SessionOrchestrator) Execute(ctx context.Context) (*SessionResult, error) {
	o.startTime = time.Now()
	cfg := o.config

	pol := cfg.Policy
	if pol == nil {
		pol = policy.NewNoopPolicy()
	}

	recCtx := context.WithoutCancel(ctx)
	recorder := NewRecorder(recCtx, pol, o.logger)
	limit := newFrameLimit(cfg.MaxFrames)

	streamCfg := cfg.Stream
	streamCfg.Logger = o.logger
	streamCfg.Metrics = cfg.Collector
	streamCfg.Observer = stream.Observers(recorder, limit, cfg.Observer)

	machine, err := stream.NewMachine(streamCfg)
	if err != nil {
		_ = recorder.Close()
		return nil, fmt.Errorf("failed to create stream machine: %w", err)
	}
	defer iox.DiscardClose(machine)

	o.logger.Info("starting session", map[string]any{
		"endpoint":   machine.Endpoint(),
		"fps":        cfg.FPS,
		"duration":   cfg.Duration.String(),
		"max_frames": cfg.MaxFrames,
	})

	startErr := machine.Start(ctx, cfg.Source, stream.StartOptions{
		SessionID: cfg.Meta.SessionID,
		FPS:       cfg.FPS,
		Encoder:   cfg.Encoder,
	})

	reason := StopReasonNone
	if startErr == nil {
		reason = o.awaitStop(ctx, machine, limit)
		machine.Stop()
		o.awaitSettled(machine, streamCfg.ShutdownTimeout)
	} else {
		o.logger.Error("session failed to start", map[string]any{"error": startErr.Error()})
	}
	_ = machine.Close()

	recordErr := recorder.Close()

	// Flush on every termination path, start failures included.
	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	flushErr := pol.Flush(flushCtx)
	flushCancel()
	if flushErr != nil {
		o.logger.Warn("policy flush failed", map[string]any{"error": flushErr.Error()})
		if recordErr == nil {
			recordErr = &IngestionError{Kind: IngestionErrorPolicy, Err: fmt.Errorf("flush: %w", flushErr)}
		}
	}

	final := machine.Snapshot()
	if machine.Faulted() {
		// Stop settles an errored session in stopped; the outcome still
		// reflects the failure.
		final.State = stream.StateError
	}
	outcome := DetermineOutcome(startErr, final, recordErr)

	result := &SessionResult{
		Meta:        cfg.Meta,
		Outcome:     outcome,
		Final:       final,
		StopReason:  reason,
		Duration:    time.Since(o.startTime),
		PolicyStats: pol.Stats(),
		RecordCount: recorder.Seq(),
	}

	ps := result.PolicyStats
	cfg.Collector.AbsorbPolicyStats(ps.TotalRecords, ps.RecordsPersisted, ps.RecordsDropped)

	o.logger.Info("session completed", map[string]any{
		"outcome":         string(outcome.Status),
		"stop_reason":     string(reason),
		"frames_received": final.FramesReceived,
		"has_summary":     final.Summary != nil,
		"duration":        result.Duration.String(),
	})

	return result, nil
}

// awaitStop blocks until something should end the session.
func (o *SessionOrchestrator) awaitStop(ctx context.Context, machine *stream.Machine, limit *frameLimit) StopReason {
	settled := make(chan struct{})
	waitCtx, cancelWait := context.WithCancel(context.Background())
	defer cancelWait()
	go func() {
		if machine.Wait(waitCtx) == nil {
			close(settled)
		}
	}()

	var durationC <-chan time.Time
	if d := o.config.Duration; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		durationC = timer.C
	}

	var pollC <-chan time.Time
	exhaustible, finite := o.config.Source.(Exhaustible)
	if finite {
		ticker := time.NewTicker(exhaustedPoll)
		defer ticker.Stop()
		pollC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return StopReasonCanceled
		case <-durationC:
			return StopReasonDuration
		case <-limit.reached():
			return StopReasonMaxFrames
		case <-settled:
			return StopReasonSettled
		case <-pollC:
			if exhaustible.Done() {
				return StopReasonExhausted
			}
		}
	}
}

// awaitSettled waits for the eos handshake to finish or give up.
func (o *SessionOrchestrator) awaitSettled(machine *stream.Machine, shutdown time.Duration) {
	if shutdown <= 0 {
		shutdown = stream.DefaultShutdownTimeout
	}
	grace := o.config.SettleGrace
	if grace <= 0 {
		grace = DefaultSettleGrace
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdown+grace)
	defer cancel()
	if err := machine.Wait(ctx); err != nil {
		o.logger.Warn("session did not settle after stop", map[string]any{"error": err.Error()})
	}
}

// frameLimit signals once the session has received n frame results.
type frameLimit struct {
	n    int64
	ch   chan struct{}
	once sync.Once
}

func newFrameLimit(n int64) *frameLimit {
	return &frameLimit{n: n, ch: make(chan struct{})}
}

// reached returns nil (never ready) when the limit is disabled.
func (l *frameLimit) reached() <-chan struct{} {
	if l.n <= 0 {
		return nil
	}
	return l.ch
}

func (l *frameLimit) OnEnvelope(s stream.Session, _ envelope.Envelope) {
	if l.n > 0 && s.FramesReceived >= l.n {
		l.once.Do(func() { close(l.ch) })
	}
}

func (l *frameLimit) OnState(stream.Session, stream.State) {}
