package policy

import (
	"context"

	"github.com/pithecene-io/ripestream/types"
)

// NoopPolicy accepts records without persisting them.
//
// Stats keep the droppable semantics: frame records count as dropped,
// summary and error records count as persisted even though nothing is
// written.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Ingest accepts the record but does not persist it.
func (p *NoopPolicy) Ingest(_ context.Context, rec *types.Record) error {
	p.stats.incTotal()
	if IsDroppable(rec.Kind) {
		p.stats.incDropped(rec.Kind)
	} else {
		p.stats.incPersisted(1)
	}
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
