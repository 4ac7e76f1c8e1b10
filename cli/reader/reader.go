package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/pressroom/cli/config"
	"github.com/pithecene-io/pressroom/ipc"
	"github.com/pithecene-io/pressroom/lode"
	"github.com/pithecene-io/pressroom/sqlite"
	"github.com/pithecene-io/pressroom/types"
)

// ErrMemoryBackend is returned when records are requested from the memory
// backend, whose records live only inside the server process.
var ErrMemoryBackend = errors.New("the memory backend keeps no records outside the server process")

// RecordSource lists persisted records.
type RecordSource interface {
	Query(ctx context.Context, opts RecordsOptions) ([]*types.ConversionRecord, error)
	Close() error
}

// ControlReader reads live stats over the control socket and records from
// a RecordSource. Either half may be absent; the matching method then
// returns an error.
type ControlReader struct {
	socketPath string
	records    RecordSource
	now        func() time.Time
}

// NewControlReader creates a reader. records may be nil when only Stats is
// needed.
func NewControlReader(socketPath string, records RecordSource) *ControlReader {
	return &ControlReader{socketPath: socketPath, records: records, now: time.Now}
}

// Stats dials the control socket and fetches one stats frame.
func (r *ControlReader) Stats(ctx context.Context) (*ServerStats, error) {
	if r.socketPath == "" {
		return nil, errors.New("no control socket configured")
	}
	c, err := ipc.Dial(ctx, r.socketPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	stats, err := c.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return NewServerStats(stats, r.now()), nil
}

// Records lists persisted records, newest first.
func (r *ControlReader) Records(ctx context.Context, opts RecordsOptions) ([]RecordView, error) {
	if r.records == nil {
		return nil, errors.New("no record store configured")
	}
	recs, err := r.records.Query(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewRecordViews(recs), nil
}

// Close releases the record source.
func (r *ControlReader) Close() error {
	if r.records == nil {
		return nil
	}
	return r.records.Close()
}

// OpenRecordSource opens the store described by cfg for reading.
func OpenRecordSource(ctx context.Context, cfg config.StorageConfig) (RecordSource, error) {
	switch cfg.Backend {
	case "", "sqlite":
		pool, err := sqlite.OpenPool(sqlite.PoolConfig{Path: cfg.ResolvedPath(), PoolSize: 1})
		if err != nil {
			return nil, err
		}
		return &sqliteSource{pool: pool}, nil
	case "fs":
		ds, err := lode.NewReadDatasetFS(cfg.Dataset, cfg.ResolvedPath())
		if err != nil {
			return nil, err
		}
		return NewDatasetSource(ds), nil
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Path)
		ds, err := lode.NewReadDatasetS3(ctx, cfg.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return NewDatasetSource(ds), nil
	case "memory":
		return nil, ErrMemoryBackend
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

type sqliteSource struct {
	pool *sqlite.Pool
}

func (s *sqliteSource) Query(ctx context.Context, opts RecordsOptions) ([]*types.ConversionRecord, error) {
	recs, err := sqlite.QueryRecords(ctx, s.pool, sqlite.Query{Day: opts.Day, Limit: opts.Limit})
	if errors.Is(err, sqlite.ErrNoRecordsFound) {
		return nil, nil
	}
	return recs, err
}

func (s *sqliteSource) Close() error {
	return s.pool.Close()
}

// DatasetSource lists records from a Lode dataset.
type DatasetSource struct {
	dataset lodelibrary.Dataset
}

// NewDatasetSource wraps an open dataset.
func NewDatasetSource(ds lodelibrary.Dataset) *DatasetSource {
	return &DatasetSource{dataset: ds}
}

// Query lists records, newest snapshot first.
func (s *DatasetSource) Query(ctx context.Context, opts RecordsOptions) ([]*types.ConversionRecord, error) {
	recs, err := lode.QueryRecords(ctx, s.dataset, lode.Query{Day: opts.Day, Limit: opts.Limit})
	if errors.Is(err, lode.ErrNoRecordsFound) {
		return nil, nil
	}
	return recs, err
}

// Close is a no-op; datasets hold no open handles.
func (s *DatasetSource) Close() error {
	return nil
}

var (
	_ Reader       = (*ControlReader)(nil)
	_ RecordSource = (*sqliteSource)(nil)
	_ RecordSource = (*DatasetSource)(nil)
)
