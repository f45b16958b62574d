package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/ripestream/log"
	"github.com/pithecene-io/ripestream/types"
)

// StreamingConfig configures a StreamingPolicy. At least one of FlushCount
// and FlushInterval must be set.
type StreamingConfig struct {
	// FlushCount flushes once this many records are buffered.
	FlushCount int
	// FlushInterval flushes a non-empty buffer on this period.
	FlushInterval time.Duration
	// FlushOnSummary flushes as soon as a summary record arrives, so the
	// session verdict is durable before shutdown finishes.
	FlushOnSummary bool

	Logger *log.Logger
}

// FlushTrigger names what caused a flush.
type FlushTrigger string

const (
	FlushTriggerCount       FlushTrigger = "count"
	FlushTriggerInterval    FlushTrigger = "interval"
	FlushTriggerSummary     FlushTrigger = "summary"
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when no flush trigger is configured.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy batches records in memory and writes them when a trigger
// fires. It never drops: a failed batch goes back in front of newer records
// and is retried by the next trigger.
//
// mu guards the buffer, stats and trigger counts. flushMu serializes whole
// flushes so the interval loop and Ingest never write concurrently.
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu          sync.Mutex
	buffer      []*types.Record
	bufferBytes int64
	stats       *statsRecorder
	triggers    map[FlushTrigger]int64

	flushMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStreamingPolicy starts the interval loop when FlushInterval is set.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:     sink,
		config:   config,
		logger:   config.Logger,
		stats:    newStatsRecorder(),
		triggers: make(map[FlushTrigger]int64, 4),
		stopCh:   make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		p.wg.Add(1)
		go p.intervalLoop()
	}
	return p, nil
}

// Ingest buffers rec and flushes if it crossed the count threshold or is a
// summary with FlushOnSummary set.
func (p *StreamingPolicy) Ingest(ctx context.Context, rec *types.Record) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	p.buffer = append(p.buffer, rec)
	p.bufferBytes += EstimateSize(rec)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	var trigger FlushTrigger
	switch {
	case p.config.FlushOnSummary && rec.Kind == types.RecordKindSummary:
		trigger = FlushTriggerSummary
	case p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount:
		trigger = FlushTriggerCount
	}
	p.mu.Unlock()

	if trigger == "" {
		return nil
	}
	return p.flush(ctx, trigger)
}

// Flush writes everything buffered.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.flush(ctx, FlushTriggerTermination)
}

func (p *StreamingPolicy) flush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.triggers[trigger]++
	p.stats.incFlushLocked()
	batch := p.buffer
	p.buffer = nil
	p.setBufferLocked()
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.setBufferLocked()
		p.mu.Unlock()
		if p.logger != nil {
			p.logger.Error("streaming flush failed", map[string]any{
				"trigger": string(trigger),
				"records": len(batch),
				"error":   err.Error(),
			})
		}
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()
	if p.logger != nil {
		p.logger.Debug("streaming flush", map[string]any{
			"trigger": string(trigger),
			"records": len(batch),
		})
	}
	return nil
}

// Close stops the interval loop, flushes best-effort and closes the sink.
// It is safe to call more than once.
func (p *StreamingPolicy) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns a consistent snapshot of the counters and buffer size.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns how many flushes each trigger caused, including
// flushes that found the buffer empty.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[FlushTrigger]int64, len(p.triggers))
	for k, v := range p.triggers {
		out[k] = v
	}
	return out
}

func (p *StreamingPolicy) intervalLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			empty := len(p.buffer) == 0
			p.mu.Unlock()
			if !empty {
				// Failures are logged and the batch stays buffered.
				_ = p.flush(context.Background(), FlushTriggerInterval)
			}
		}
	}
}

// setBufferLocked recomputes the buffered byte estimate. Caller holds mu.
func (p *StreamingPolicy) setBufferLocked() {
	var total int64
	for _, rec := range p.buffer {
		total += EstimateSize(rec)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(total)
}

var _ Policy = (*StreamingPolicy)(nil)
