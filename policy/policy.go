// Package policy defines how recorded stream envelopes reach persistence.
package policy

import (
	"context"
	"maps"
	"sync"

	"github.com/pithecene-io/ripestream/types"
)

// Policy controls buffering, dropping and persistence of session records.
//
// Drop rules:
//   - May drop: frame records
//   - Must NOT drop: summary, error
//   - Policy must not alter record contents
//   - Policy failure fails the recording (the stream itself keeps running)
type Policy interface {
	// Ingest handles one record.
	// May drop droppable kinds. Must not drop non-droppable kinds;
	// returns an error instead.
	Ingest(ctx context.Context, rec *types.Record) error

	// Flush flushes any buffered records.
	// Called when the session settles and on shutdown.
	Flush(ctx context.Context) error

	// Close releases policy resources and closes the sink.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalRecords is the number of records received.
	TotalRecords int64
	// RecordsPersisted is the number of records written to the sink.
	RecordsPersisted int64
	// RecordsDropped is the total number of records dropped.
	RecordsDropped int64
	// DroppedByKind maps record kinds to drop counts.
	DroppedByKind map[types.RecordKind]int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of sink or buffer errors.
	Errors int64
}

// IsDroppable reports whether records of the given kind may be dropped.
// Frame results are superseded by the next frame; summaries and errors are not.
func IsDroppable(kind types.RecordKind) bool {
	return kind == types.RecordKindFrame
}

// EstimateSize returns a rough in-memory size for buffer accounting.
func EstimateSize(rec *types.Record) int64 {
	size := int64(200)
	if rec.Frame != nil {
		size += int64(len(rec.Frame.Detections) * 120)
	}
	size += int64(len(rec.Detail))
	return size
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; the recorder does not
// infer any policy decisions.
//
// Lock discipline:
//   - StrictPolicy and NoopPolicy use the locking methods
//   - Buffered and streaming policies use the Locked methods only while
//     holding their own mu, keeping buffer state and counters atomic
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{DroppedByKind: make(map[types.RecordKind]int64)},
	}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incDropped(kind types.RecordKind) {
	r.mu.Lock()
	r.incDroppedLocked(kind)
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods; caller holds the owning policy's mu. ---

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.RecordsPersisted += n
}

func (r *statsRecorder) incDroppedLocked(kind types.RecordKind) {
	r.stats.RecordsDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns a copy of the counters with the given buffer size.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByKind = maps.Clone(r.stats.DroppedByKind)
	return s
}
