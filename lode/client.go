package lode

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/types"
)

// LodeClient is a Lode-backed implementation of Client.
type LodeClient struct {
	dataset lode.Dataset
	config  Config
}

// NewLodeClient creates a Lode client with filesystem storage under root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg), nil
}

func newClient(ds lode.Dataset, cfg Config) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg}
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteRecords writes a batch of records as one Lode snapshot.
func (c *LodeClient) WriteRecords(ctx context.Context, records []*types.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRecordMap(rec, c.config))
	}

	if _, err := c.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}
	return nil
}

// WriteMetrics writes the metrics snapshot into the record_kind=metrics partition.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	row := toMetricsRecordMap(snap, completedAt, c.config)
	if _, err := c.dataset.Write(ctx, []any{row}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}
	return nil
}

// Close releases client resources. Lode datasets hold nothing open.
func (c *LodeClient) Close() error {
	return nil
}

func (c *LodeClient) partitionPath() string {
	return SessionPartition(c.config.Dataset, c.config.Source, c.config.Day, c.config.SessionID)
}

// SessionPartition is the storage-relative location of one session's
// records, below the store root.
func SessionPartition(dataset, source, day, sessionID string) string {
	return fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/session_id=%s",
		dataset, source, day, sessionID)
}

var _ Client = (*LodeClient)(nil)
