// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single streaming session. It is
// a leaf package apart from the Prometheus bridge in prometheus.go. Recording
// counters are absorbed from policy.Stats at session end rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted  int64
	SessionsStopped  int64
	SessionsErrored  int64
	ConnectFailures  int64
	ConnectTimeouts  int64
	ShutdownTimeouts int64

	// Capture
	FramesSent     int64
	FramesSkipped  int64
	BytesSent      int64
	TicksCoalesced int64

	// Inbound
	EnvelopesByType map[string]int64
	DecodeErrors    int64
	TransportErrors int64

	// Recording (absorbed from policy.Stats at session end)
	RecordsReceived  int64
	RecordsPersisted int64
	RecordsDropped   int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Dimensions (informational, set at construction)
	Policy         string
	StorageBackend string
	SessionID      string
	Source         string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted  int64
	sessionsStopped  int64
	sessionsErrored  int64
	connectFailures  int64
	connectTimeouts  int64
	shutdownTimeouts int64

	framesSent     int64
	framesSkipped  int64
	bytesSent      int64
	ticksCoalesced int64

	envelopesByType map[string]int64
	decodeErrors    int64
	transportErrors int64

	recordsReceived  int64
	recordsPersisted int64
	recordsDropped   int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	policy         string
	storageBackend string
	sessionID      string
	source         string
}

// NewCollector creates a Collector with dimension labels.
// policy and storageBackend are "none" when recording is disabled.
func NewCollector(policy, storageBackend, sessionID, source string) *Collector {
	return &Collector{
		envelopesByType: make(map[string]int64),
		policy:          policy,
		storageBackend:  storageBackend,
		sessionID:       sessionID,
		source:          source,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session reaching streaming.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionStopped records a session settling in stopped.
func (c *Collector) IncSessionStopped() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStopped, 1)
}

// IncSessionErrored records a session settling in error.
func (c *Collector) IncSessionErrored() {
	if c == nil {
		return
	}
	c.add(&c.sessionsErrored, 1)
}

// IncConnectFailure records a connection that failed before it was ready.
func (c *Collector) IncConnectFailure() {
	if c == nil {
		return
	}
	c.add(&c.connectFailures, 1)
}

// IncConnectTimeout records a connection attempt that hit its deadline.
func (c *Collector) IncConnectTimeout() {
	if c == nil {
		return
	}
	c.add(&c.connectTimeouts, 1)
}

// IncShutdownTimeout records a stop whose summary never arrived in time.
func (c *Collector) IncShutdownTimeout() {
	if c == nil {
		return
	}
	c.add(&c.shutdownTimeouts, 1)
}

// --- Capture ---

// AddFrameSent records one transmitted frame of n bytes.
func (c *Collector) AddFrameSent(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesSent++
	c.bytesSent += int64(n)
	c.mu.Unlock()
}

// IncFrameSkipped records a capture cycle that produced nothing to send.
func (c *Collector) IncFrameSkipped() {
	if c == nil {
		return
	}
	c.add(&c.framesSkipped, 1)
}

// IncTickCoalesced records a tick folded into a pending follow-up cycle.
func (c *Collector) IncTickCoalesced() {
	if c == nil {
		return
	}
	c.add(&c.ticksCoalesced, 1)
}

// --- Inbound ---

// IncEnvelope records one classified inbound envelope.
func (c *Collector) IncEnvelope(envelopeType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.envelopesByType[envelopeType]++
	c.mu.Unlock()
}

// IncDecodeError records a malformed inbound message.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// IncTransportError records a transport error reported by the connection.
func (c *Collector) IncTransportError() {
	if c == nil {
		return
	}
	c.add(&c.transportErrors, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteRecords call
// with N records counts as 1 success.

// IncLodeWriteSuccess records a successful Lode write operation.
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation.
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure, 1)
}

// --- Recording (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies recording counters from policy.Stats.
// Called once after the session settles with the final stats.
func (c *Collector) AbsorbPolicyStats(received, persisted, dropped int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsReceived = received
	c.recordsPersisted = persisted
	c.recordsDropped = dropped
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.envelopesByType))
	for k, v := range c.envelopesByType {
		byType[k] = v
	}

	return Snapshot{
		SessionsStarted:  c.sessionsStarted,
		SessionsStopped:  c.sessionsStopped,
		SessionsErrored:  c.sessionsErrored,
		ConnectFailures:  c.connectFailures,
		ConnectTimeouts:  c.connectTimeouts,
		ShutdownTimeouts: c.shutdownTimeouts,

		FramesSent:     c.framesSent,
		FramesSkipped:  c.framesSkipped,
		BytesSent:      c.bytesSent,
		TicksCoalesced: c.ticksCoalesced,

		EnvelopesByType: byType,
		DecodeErrors:    c.decodeErrors,
		TransportErrors: c.transportErrors,

		RecordsReceived:  c.recordsReceived,
		RecordsPersisted: c.recordsPersisted,
		RecordsDropped:   c.recordsDropped,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		SessionID:      c.sessionID,
		Source:         c.source,
	}
}
