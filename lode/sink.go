// Package lode persists conversion records to a Lode dataset.
//
// Records are written as JSONL under a Hive layout partitioned by day:
//
//	datasets/<dataset>/.../day=YYYY-MM-DD/...
//
// Each Append is one Lode write and therefore one snapshot. Readers
// deduplicate by job_id, so a retried write never shows up twice.
package lode

import (
	"context"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/pressroom/persist"
	"github.com/pithecene-io/pressroom/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "pressroom"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day"}

// DeriveDay computes the partition day from a record timestamp.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the Lode dataset ID. Empty means DefaultDataset.
	Dataset string
}

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// Sink is a Lode-backed persist.Sink.
type Sink struct {
	dataset lode.Dataset
	config  Config
}

// NewSink creates a sink with filesystem storage rooted at root.
func NewSink(cfg Config, root string) (*Sink, error) {
	return NewSinkWithFactory(cfg, lode.NewFSFactory(root))
}

// NewSinkWithFactory creates a sink over a custom store factory.
// Use a factory returning lode.NewMemory() for testing.
func NewSinkWithFactory(cfg Config, factory lode.StoreFactory) (*Sink, error) {
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return &Sink{dataset: ds, config: cfg}, nil
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// Append writes one record.
func (s *Sink) Append(ctx context.Context, rec *types.ConversionRecord) error {
	m := toRecordMap(rec)
	if _, err := s.dataset.Write(ctx, []any{m}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, s.config.dataset()+"/day="+DeriveDay(rec.Timestamp))
	}
	return nil
}

// Close releases sink resources. Lode datasets hold none.
func (s *Sink) Close() error {
	return nil
}

// Verify Sink implements persist.Sink.
var _ persist.Sink = (*Sink)(nil)
