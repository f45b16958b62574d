package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/pithecene-io/ripestream/log"
	"github.com/pithecene-io/ripestream/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferRecords is the maximum number of buffered records.
	// Zero means no count limit.
	MaxBufferRecords int

	// MaxBufferBytes is the maximum estimated buffer size.
	// Zero means no byte limit. At least one limit must be set.
	MaxBufferBytes int64

	// Logger is an optional logger for drop and flush observability.
	Logger *log.Logger
}

// DefaultBufferedConfig returns defaults for the buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferRecords: 1000,
		MaxBufferBytes:   10 * 1024 * 1024,
	}
}

// ErrBufferFull is returned when the buffer is full and the record is not droppable.
var ErrBufferFull = errors.New("buffer full: cannot accept non-droppable record")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferRecords or MaxBufferBytes must be set")

// BufferedPolicy holds records in a bounded buffer and writes them on Flush.
//
//   - May drop: frame records (incoming, or oldest buffered to make room)
//   - Must NOT drop: summary, error
//   - On flush failure the batch is kept and retried on the next Flush
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex
	buffer      []*types.Record
	bufferBytes int64
	stats       *statsRecorder

	flushMu sync.Mutex
}

// NewBufferedPolicy creates a new buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferRecords <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.Record, 0, max(config.MaxBufferRecords, 100)),
		stats:  newStatsRecorder(),
	}, nil
}

// Ingest buffers the record, applying drop rules when the buffer is full:
//   - a droppable incoming record is dropped
//   - a non-droppable record evicts the oldest buffered frame record
//   - with nothing to evict, ErrBufferFull is returned
func (p *BufferedPolicy) Ingest(_ context.Context, rec *types.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalLocked()
	size := EstimateSize(rec)

	if p.hasRoomFor(size) {
		p.append(rec, size)
		return nil
	}

	if IsDroppable(rec.Kind) {
		p.stats.incDroppedLocked(rec.Kind)
		p.logDrop(rec.Kind, "buffer_full")
		return nil
	}

	if p.dropOldestDroppable() && p.hasRoomForBytes(size) {
		p.append(rec, size)
		return nil
	}

	p.stats.incErrorsLocked()
	p.logBufferOverflow(rec.Kind)
	return ErrBufferFull
}

// append adds a record. Caller must hold mu.
func (p *BufferedPolicy) append(rec *types.Record, size int64) {
	p.buffer = append(p.buffer, rec)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// Flush writes the whole buffer. The batch is detached while it is written
// and restored ahead of newer records if the write fails.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked()
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*types.Record, 0, max(p.config.MaxBufferRecords, 100))
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()
	return nil
}

// Close flushes best-effort and closes the sink.
func (p *BufferedPolicy) Close() error {
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns an atomic snapshot of counters and buffer size.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(p.bufferBytes)
}

func (p *BufferedPolicy) hasRoomFor(size int64) bool {
	if p.config.MaxBufferRecords > 0 && len(p.buffer) >= p.config.MaxBufferRecords {
		return false
	}
	return p.hasRoomForBytes(size)
}

func (p *BufferedPolicy) hasRoomForBytes(size int64) bool {
	return p.config.MaxBufferBytes <= 0 || p.bufferBytes+size <= p.config.MaxBufferBytes
}

// dropOldestDroppable removes the oldest buffered frame record.
// Caller must hold mu.
func (p *BufferedPolicy) dropOldestDroppable() bool {
	for i, rec := range p.buffer {
		if !IsDroppable(rec.Kind) {
			continue
		}
		p.buffer = append(p.buffer[:i], p.buffer[i+1:]...)
		p.bufferBytes -= EstimateSize(rec)
		p.stats.setBufferSizeLocked(p.bufferBytes)
		p.stats.incDroppedLocked(rec.Kind)
		p.logDrop(rec.Kind, "evicted_for_non_droppable")
		return true
	}
	return false
}

// recalculateBufferBytes recomputes bufferBytes. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, rec := range p.buffer {
		total += EstimateSize(rec)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(total)
}

func (p *BufferedPolicy) logDrop(kind types.RecordKind, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("record dropped", map[string]any{
		"record_kind": string(kind),
		"reason":      reason,
		"policy":      "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(kind types.RecordKind) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"record_kind": string(kind),
		"policy":      "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"error":  err.Error(),
		"policy": "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
