package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/ripestream/encoder"
	"github.com/pithecene-io/ripestream/envelope"
	"github.com/pithecene-io/ripestream/log"
	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/types"
)

// DefaultShutdownTimeout bounds the wait for a summary after "eos".
const DefaultShutdownTimeout = 1500 * time.Millisecond

// Config configures a Machine. Zero values take defaults.
type Config struct {
	// BaseURL is the gateway HTTP(S) address. Defaults to DefaultBaseURL.
	BaseURL string
	// APIKey is sent as X-API-Key on the handshake when set.
	APIKey string
	// Headers are extra handshake headers.
	Headers http.Header
	// ConnectTimeout defaults to 5000ms.
	ConnectTimeout time.Duration
	// ShutdownTimeout defaults to 1500ms.
	ShutdownTimeout time.Duration
	// WriteWait is the per-message write deadline.
	WriteWait time.Duration
	// Dialer overrides the WebSocket dialer.
	Dialer Dialer

	Logger   *log.Logger
	Metrics  *metrics.Collector
	Observer Observer
}

// StartOptions configures one session. An empty SessionID is generated
// and a non-positive FPS means 5. A zero Encoder means
// encoder.DefaultOptions(); otherwise it is used as given, so a quality
// of 0 stays 0.
type StartOptions struct {
	SessionID string
	FPS       float64
	Encoder   encoder.Options
}

func (o StartOptions) withDefaults() StartOptions {
	if o.SessionID == "" {
		o.SessionID = uuid.NewString()
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.Encoder == (encoder.Options{}) {
		o.Encoder = encoder.DefaultOptions()
	}
	return o
}

// Machine owns the lifecycle of one streaming session at a time.
// All methods are safe for concurrent use.
type Machine struct {
	cfg      Config
	connCfg  ConnConfig
	endpoint string
	logger   *log.Logger

	mu         sync.Mutex
	state      State
	session    Session
	gen        uint64
	conn       *Conn
	sched      *Scheduler
	cancelDial context.CancelFunc
	deadline   *time.Timer
	settled    chan struct{}
	isSettled  bool
	faulted    bool
}

// NewMachine resolves the stream endpoint and returns an idle Machine.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}

	endpoint, err := ToStreamWSURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	settled := make(chan struct{})
	close(settled)

	return &Machine{
		cfg: cfg,
		connCfg: ConnConfig{
			Headers:        cfg.Headers,
			APIKey:         cfg.APIKey,
			ConnectTimeout: cfg.ConnectTimeout,
			WriteWait:      cfg.WriteWait,
			Dialer:         cfg.Dialer,
		},
		endpoint:  endpoint,
		logger:    cfg.Logger.WithEndpoint(endpoint),
		state:     StateIdle,
		session:   Session{State: StateIdle, Endpoint: endpoint},
		settled:   settled,
		isSettled: true,
	}, nil
}

// Endpoint returns the resolved stream URL.
func (m *Machine) Endpoint() string {
	return m.endpoint
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Faulted reports whether the current session reached the error state,
// even if a later Stop settled it in stopped.
func (m *Machine) Faulted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faulted
}

// Snapshot returns the current session.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Wait blocks until the current session settles in stopped or error, or
// ctx ends. An idle Machine is settled.
func (m *Machine) Wait(ctx context.Context) error {
	m.mu.Lock()
	settled := m.settled
	m.mu.Unlock()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start opens a session streaming frames from src. It returns once the
// connection is ready and capture has begun.
//
// Start while connecting or streaming is a no-op. Setup failures leave the
// session in error with the detail recorded and are returned: ErrConnectTimeout
// or ErrConnectFailed. If Stop, Close or ctx ends the attempt first, Start
// returns ErrConnectCanceled.
func (m *Machine) Start(ctx context.Context, src encoder.FrameSource, opts StartOptions) error {
	opts = opts.withDefaults()
	if err := opts.Encoder.Validate(); err != nil {
		return fmt.Errorf("invalid start options: %w", err)
	}

	var fx effects
	m.mu.Lock()
	if m.state.Busy() {
		m.mu.Unlock()
		return nil
	}
	m.releaseLocked(&fx)
	m.gen++
	gen := m.gen
	m.faulted = false
	m.session = Session{
		ID:        opts.SessionID,
		State:     m.state,
		Endpoint:  m.endpoint,
		StartedAt: time.Now().UTC(),
	}
	if !m.isSettled {
		// A session superseded while stopping still releases its waiters.
		close(m.settled)
	}
	m.settled = make(chan struct{})
	m.isSettled = false
	m.transition(StateConnecting, &fx)
	dialCtx, cancel := context.WithCancel(ctx)
	m.cancelDial = cancel
	m.mu.Unlock()
	fx.run()

	conn, err := Open(dialCtx, m.endpoint, m.connCfg)
	cancel()

	fx = nil
	m.mu.Lock()
	if m.gen != gen || m.state != StateConnecting {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrConnectCanceled
	}
	m.cancelDial = nil

	if err != nil {
		switch {
		case errors.Is(err, ErrConnectCanceled):
			m.transition(StateStopped, &fx)
		case errors.Is(err, ErrConnectTimeout):
			m.cfg.Metrics.IncConnectTimeout()
			m.session.LastError = ptr(DetailConnectTimeout)
			m.transition(StateError, &fx)
		default:
			m.cfg.Metrics.IncConnectFailure()
			m.session.LastError = ptr(DetailConnectFailed)
			m.transition(StateError, &fx)
		}
		m.logger.Error("stream connect failed", map[string]any{
			"session_id": opts.SessionID,
			"error":      err.Error(),
		})
		m.mu.Unlock()
		fx.run()
		return err
	}

	m.conn = conn
	m.cfg.Metrics.IncSessionStarted()
	m.transition(StateStreaming, &fx)

	period := PeriodForFPS(opts.FPS)
	m.sched = NewScheduler(period,
		m.captureCycle(gen, conn, src, opts.Encoder),
		func() bool { return m.streaming(gen) },
		m.cfg.Metrics,
	)
	conn.Listen(connHandler{m: m, gen: gen})
	m.sched.Start()
	m.logger.Info("stream started", map[string]any{
		"session_id": opts.SessionID,
		"period_ms":  period.Milliseconds(),
		"width":      opts.Encoder.Width,
		"height":     opts.Encoder.Height,
		"quality":    opts.Encoder.Quality,
	})
	m.mu.Unlock()
	fx.run()
	return nil
}

// Stop ends the session gracefully. From connecting or streaming it sends
// "eos" and waits up to the shutdown timeout for the summary before closing.
// From error it releases what is left and settles in stopped; Faulted
// still reports the error. Stop never fails and is idempotent.
func (m *Machine) Stop() {
	var fx effects
	m.mu.Lock()
	switch m.state {
	case StateIdle, StateStopped:
		m.transition(StateStopped, &fx)
		m.mu.Unlock()
		fx.run()
		return
	case StateError:
		// The socket is already broken, so there is no eos handshake.
		m.transition(StateStopping, &fx)
		m.releaseLocked(&fx)
		m.transition(StateStopped, &fx)
		m.mu.Unlock()
		fx.run()
		return
	case StateStopping:
		m.mu.Unlock()
		return
	}

	m.transition(StateStopping, &fx)
	// The ticker is cancelled before anything touches the socket.
	if m.sched != nil {
		m.sched.Stop()
		m.sched = nil
	}
	conn, gen := m.conn, m.gen
	if conn == nil || !conn.IsOpen() {
		m.releaseLocked(&fx)
		m.transition(StateStopped, &fx)
		m.mu.Unlock()
		fx.run()
		return
	}
	m.mu.Unlock()
	fx.run()

	err := conn.CloseSend(types.EOSSentinel)

	fx = nil
	m.mu.Lock()
	defer func() {
		m.mu.Unlock()
		fx.run()
	}()
	if m.gen != gen || m.state != StateStopping {
		return
	}
	if err != nil {
		m.logger.Warn("failed to send end-of-stream", map[string]any{"error": err.Error()})
		m.releaseLocked(&fx)
		m.transition(StateStopped, &fx)
		return
	}
	m.deadline = time.AfterFunc(m.cfg.ShutdownTimeout, func() { m.shutdownDeadline(gen) })
}

// Close releases every resource immediately without the eos handshake.
// Pending Start calls return ErrConnectCanceled.
func (m *Machine) Close() error {
	var fx effects
	m.mu.Lock()
	sched := m.sched
	m.gen++
	m.releaseLocked(&fx)
	if m.state != StateIdle && !m.state.Settled() {
		m.transition(StateStopped, &fx)
	}
	m.mu.Unlock()
	fx.run()

	if sched != nil {
		sched.Wait()
	}
	return nil
}

// HandleMessage decodes one inbound message and applies it to the current
// session. Malformed messages record a parse failure as the last error and
// return the decode error; unclassifiable messages are ignored.
func (m *Machine) HandleMessage(kind envelope.MessageKind, raw []byte) (envelope.Envelope, error) {
	return m.deliver(0, kind, raw)
}

// deliver applies a message from connection gen; gen 0 means the current
// session regardless of connection.
func (m *Machine) deliver(gen uint64, kind envelope.MessageKind, raw []byte) (envelope.Envelope, error) {
	env, err := envelope.Decode(kind, raw)

	var fx effects
	m.mu.Lock()
	if gen != 0 && gen != m.gen {
		m.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		// A summary that fails validation (an unknown harvest_suggestion,
		// say) is dropped here like any malformed payload. While stopping
		// that leaves the shutdown deadline to settle the session.
		m.session.LastError = ptr(DetailParseFailed)
		m.cfg.Metrics.IncDecodeError()
		m.logger.Warn("failed to parse stream message", map[string]any{
			"kind":  kind.String(),
			"error": err.Error(),
		})
		m.mu.Unlock()
		return nil, err
	}
	if env == nil {
		m.mu.Unlock()
		return nil, nil
	}
	m.applyLocked(env, &fx)
	m.mu.Unlock()
	fx.run()
	return env, nil
}

func (m *Machine) applyLocked(env envelope.Envelope, fx *effects) {
	switch e := env.(type) {
	case *envelope.Frame:
		if m.state != StateStreaming && m.state != StateStopping {
			return
		}
		m.session.LastFrame = ptr(e.Result)
		m.session.ModelVersion = ptr(e.ModelVersion)
		m.session.SchemaVersion = ptr(e.SchemaVersion)
		m.session.FramesReceived++
	case *envelope.Summary:
		m.session.Summary = ptr(e.Summary)
		m.session.ModelVersion = ptr(e.ModelVersion)
		m.session.SchemaVersion = ptr(e.SchemaVersion)
	case *envelope.Error:
		m.session.LastError = ptr(e.Detail)
		m.logger.Warn("inference service reported an error", map[string]any{"detail": e.Detail})
	}
	m.cfg.Metrics.IncEnvelope(string(env.Type()))

	if obs := m.cfg.Observer; obs != nil {
		snap := m.session
		fx.add(func() { obs.OnEnvelope(snap, env) })
	}

	if env.Type() == envelope.TypeSummary && m.state == StateStopping {
		m.releaseLocked(fx)
		m.transition(StateStopped, fx)
	}
}

func (m *Machine) transportError(gen uint64, err error) {
	var fx effects
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.cfg.Metrics.IncTransportError()
	m.logger.Error("stream transport error", map[string]any{"error": err.Error()})
	if m.state != StateStopped {
		if m.session.LastError == nil {
			m.session.LastError = ptr(DetailInterrupted)
		}
		m.transition(StateError, &fx)
	}
	m.mu.Unlock()
	fx.run()
}

func (m *Machine) transportClosed(gen uint64, code int, reason string) {
	var fx effects
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.logger.Debug("stream connection closed", map[string]any{"code": code, "reason": reason})
	m.releaseLocked(&fx)
	if m.state != StateError {
		m.transition(StateStopped, &fx)
	}
	m.mu.Unlock()
	fx.run()
}

func (m *Machine) shutdownDeadline(gen uint64) {
	var fx effects
	m.mu.Lock()
	if gen != m.gen || m.state != StateStopping {
		m.mu.Unlock()
		return
	}
	m.deadline = nil
	m.cfg.Metrics.IncShutdownTimeout()
	m.logger.Warn("no session summary before shutdown deadline", map[string]any{
		"error":      ErrShutdownTimeout.Error(),
		"timeout_ms": m.cfg.ShutdownTimeout.Milliseconds(),
	})
	m.releaseLocked(&fx)
	m.transition(StateStopped, &fx)
	m.mu.Unlock()
	fx.run()
}

func (m *Machine) streaming(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && m.state == StateStreaming
}

// captureCycle returns one encode/send attempt bound to a connection.
func (m *Machine) captureCycle(gen uint64, conn *Conn, src encoder.FrameSource, opts encoder.Options) func() {
	return func() {
		if !conn.IsOpen() {
			return
		}
		payload, err := encoder.Encode(src, opts)
		if err != nil {
			m.cfg.Metrics.IncFrameSkipped()
			if !errors.Is(err, encoder.ErrUnavailable) {
				m.logger.Warn("frame encode failed", map[string]any{"error": err.Error()})
			}
			return
		}
		// Discard the frame if the session moved on while encoding.
		if !m.streaming(gen) || !conn.IsOpen() {
			return
		}
		if err := conn.SendBinary(payload); err != nil {
			if !errors.Is(err, ErrSendClosed) && !errors.Is(err, ErrNotOpen) {
				m.logger.Warn("frame send failed", map[string]any{"error": err.Error()})
			}
			return
		}
		m.cfg.Metrics.AddFrameSent(len(payload))
	}
}

// transition is the single place state changes. Caller holds m.mu.
func (m *Machine) transition(to State, fx *effects) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.session.State = to

	switch to {
	case StateStopped:
		// An errored session was already counted.
		if from != StateIdle && !m.faulted {
			m.cfg.Metrics.IncSessionStopped()
		}
	case StateError:
		m.faulted = true
		m.cfg.Metrics.IncSessionErrored()
	}
	if to.Settled() && !m.isSettled {
		m.isSettled = true
		close(m.settled)
	}

	m.logger.Debug("stream state changed", map[string]any{"from": string(from), "to": string(to)})
	if obs := m.cfg.Observer; obs != nil {
		snap := m.session
		fx.add(func() { obs.OnState(snap, from) })
	}
}

// releaseLocked stops the scheduler, the shutdown deadline and any dial in
// progress, and schedules the connection close. Caller holds m.mu.
func (m *Machine) releaseLocked(fx *effects) {
	if m.sched != nil {
		m.sched.Stop()
		m.sched = nil
	}
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if conn := m.conn; conn != nil {
		m.conn = nil
		fx.add(func() { _ = conn.Close() })
	}
}

type connHandler struct {
	m   *Machine
	gen uint64
}

func (h connHandler) OnMessage(kind envelope.MessageKind, data []byte) {
	_, _ = h.m.deliver(h.gen, kind, data)
}

func (h connHandler) OnError(err error) {
	h.m.transportError(h.gen, err)
}

func (h connHandler) OnClose(code int, reason string) {
	h.m.transportClosed(h.gen, code, reason)
}

// effects defers observer callbacks and socket closes until m.mu is released.
type effects []func()

func (fx *effects) add(f func()) {
	*fx = append(*fx, f)
}

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}
